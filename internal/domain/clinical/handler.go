package clinical

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pacigest/pacigest/internal/platform/auth"
	"github.com/pacigest/pacigest/pkg/pagination"
	"github.com/pacigest/pacigest/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the record and file routes. subscription runs after
// the capability check.
func (h *Handler) RegisterRoutes(api *echo.Group, subscription echo.MiddlewareFunc) {
	view := auth.RequireCapability(auth.CanViewMedicalRecords)
	edit := auth.RequireCapability(auth.CanEditMedicalRecords)

	records := api.Group("/medical-records")
	records.GET("", h.ListRecords, view, subscription)
	records.GET("/:id", h.GetRecord, view, subscription)
	records.POST("", h.CreateRecord, edit, subscription)
	records.PATCH("/:id", h.UpdateRecord, edit, subscription)
	records.PUT("/:id", h.UpdateRecord, edit, subscription)
	records.DELETE("/:id", h.DeleteRecord, edit, subscription)

	files := api.Group("/medical-files")
	files.GET("", h.ListFiles, view, subscription)
	files.GET("/:id", h.GetFile, view, subscription)
	files.POST("", h.CreateFile, edit, subscription)
	files.DELETE("/:id", h.DeleteFile, edit, subscription)
}

func (h *Handler) ListRecords(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	patientID, err := response.QueryID(c, "patient_id")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	records, total, err := h.svc.ListRecords(c.Request().Context(), sess, RecordFilter{PatientID: patientID}, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(records, total, pg))
}

func (h *Handler) GetRecord(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	id, err := response.ParamID(c, "id")
	if err != nil {
		return err
	}
	m, err := h.svc.GetRecord(c.Request().Context(), sess, id)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, m)
}

func (h *Handler) CreateRecord(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	var req CreateRecordRequest
	if err := response.Bind(c, &req); err != nil {
		return err
	}
	m, err := h.svc.CreateRecord(c.Request().Context(), sess, req)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusCreated, m)
}

func (h *Handler) UpdateRecord(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	id, err := response.ParamID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateRecordRequest
	if err := response.Bind(c, &req); err != nil {
		return err
	}
	m, err := h.svc.UpdateRecord(c.Request().Context(), sess, id, req)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, m)
}

func (h *Handler) DeleteRecord(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	id, err := response.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteRecord(c.Request().Context(), sess, id); err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "medical record deleted")
}

func (h *Handler) ListFiles(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	patientID, err := response.QueryID(c, "patient_id")
	if err != nil {
		return err
	}
	recordID, err := response.QueryID(c, "medical_record_id")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := FileFilter{PatientID: patientID, MedicalRecordID: recordID}
	files, total, err := h.svc.ListFiles(c.Request().Context(), sess, f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(files, total, pg))
}

func (h *Handler) GetFile(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	id, err := response.ParamID(c, "id")
	if err != nil {
		return err
	}
	f, err := h.svc.GetFile(c.Request().Context(), sess, id)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, f)
}

func (h *Handler) CreateFile(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	var req CreateFileRequest
	if err := response.Bind(c, &req); err != nil {
		return err
	}
	f, err := h.svc.CreateFile(c.Request().Context(), sess, req)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusCreated, f)
}

func (h *Handler) DeleteFile(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	id, err := response.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteFile(c.Request().Context(), sess, id); err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "medical file deleted")
}
