package db

import (
	"context"
	"errors"
	"testing"
)

func TestTxFromContext_Empty(t *testing.T) {
	if TxFromContext(context.Background()) != nil {
		t.Error("expected no transaction in a bare context")
	}
}

func TestNoTx_RunsFunction(t *testing.T) {
	called := false
	err := NoTx{}.InTx(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Errorf("expected fn to run without error, called=%v err=%v", called, err)
	}

	want := errors.New("boom")
	if got := (NoTx{}).InTx(context.Background(), func(context.Context) error { return want }); !errors.Is(got, want) {
		t.Errorf("expected error to propagate, got %v", got)
	}
}
