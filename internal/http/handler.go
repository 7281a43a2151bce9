package http

import (
	"context"
	"encoding/base64"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nurpe/meter-measures/internal/model"
	"github.com/nurpe/meter-measures/internal/service"
)

type Handler struct {
	measures *service.MeasurementService
	log      zerolog.Logger
}

func NewHandler(measures *service.MeasurementService, log zerolog.Logger) *Handler {
	return &Handler{measures: measures, log: log}
}

func (h *Handler) Register(router *gin.Engine) {
	router.GET("/healthz", h.health)
	router.POST("/upload", h.upload)
	router.PATCH("/confirm", h.confirm)
	router.GET("/:customer_code/list", h.list)
	router.GET("/:customer_code/report", h.reportXLSX)
	router.GET("/:customer_code/report/pdf", h.reportPDF)
}

// errorResponse is the envelope every non-2xx reply uses. The field names are
// a compatibility contract with existing clients.
type errorResponse struct {
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type uploadRequest struct {
	Image           string `json:"image" binding:"required"`
	CustomerCode    string `json:"customer_code" binding:"required"`
	MeasureDatetime string `json:"measure_datetime" binding:"required"`
	MeasureType     string `json:"measure_type" binding:"required"`
}

func (h *Handler) upload(c *gin.Context) {
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			ErrorCode:        "INVALID_DATA",
			ErrorDescription: err.Error(),
		})
		return
	}

	measureType, err := model.ParseMeasureType(req.MeasureType)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			ErrorCode:        "INVALID_DATA",
			ErrorDescription: "measure_type must be WATER or GAS",
		})
		return
	}

	measureDatetime, err := parseDatetime(req.MeasureDatetime)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			ErrorCode:        "INVALID_DATA",
			ErrorDescription: "measure_datetime is not a valid date-time",
		})
		return
	}

	image, err := decodeImage(req.Image)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			ErrorCode:        "INVALID_IMAGE",
			ErrorDescription: "the provided image is invalid",
		})
		return
	}

	measurement, err := h.measures.Upload(c.Request.Context(), service.UploadInput{
		CustomerCode:    req.CustomerCode,
		MeasureDatetime: measureDatetime,
		MeasureType:     measureType,
		Image:           image,
	})
	if err != nil {
		h.handleError(c, err, "SERVER_ERROR")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"image_url":     measurement.ImageURL,
		"measure_value": measurement.MeasureValue.Decimal.InexactFloat64(),
		"measure_uuid":  measurement.MeasureUUID,
	})
}

type confirmRequest struct {
	MeasureUUID    string   `json:"measure_uuid" binding:"required"`
	ConfirmedValue *float64 `json:"confirmed_value" binding:"required"`
}

func (h *Handler) confirm(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			ErrorCode:        "INVALID_DATA",
			ErrorDescription: err.Error(),
		})
		return
	}

	measureUUID, err := uuid.Parse(strings.TrimSpace(req.MeasureUUID))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			ErrorCode:        "INVALID_DATA",
			ErrorDescription: "measure_uuid is not a valid UUID",
		})
		return
	}

	confirmedValue := *req.ConfirmedValue
	if math.IsNaN(confirmedValue) || math.IsInf(confirmedValue, 0) {
		c.JSON(http.StatusBadRequest, errorResponse{
			ErrorCode:        "INVALID_DATA",
			ErrorDescription: "confirmed_value must be a finite number",
		})
		return
	}

	if err := h.measures.Confirm(c.Request.Context(), measureUUID, decimal.NewFromFloat(confirmedValue)); err != nil {
		h.handleError(c, err, "INTERNAL_SERVER_ERROR")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) list(c *gin.Context) {
	customerCode := c.Param("customer_code")
	measureType := c.Query("measure_type")

	summaries, err := h.measures.List(c.Request.Context(), customerCode, measureType)
	if err != nil {
		h.handleError(c, err, "INTERNAL_SERVER_ERROR")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"customer_code": customerCode,
		"measures":      summaries,
	})
}

func (h *Handler) reportXLSX(c *gin.Context) {
	h.report(c, h.measures.MonthlyReportXLSX, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
}

func (h *Handler) reportPDF(c *gin.Context) {
	h.report(c, h.measures.MonthlyReportPDF, "application/pdf")
}

func (h *Handler) report(c *gin.Context, generate func(ctx context.Context, customerCode string, year, month int) (*service.ReportResult, error), contentType string) {
	customerCode := c.Param("customer_code")

	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			ErrorCode:        "INVALID_DATA",
			ErrorDescription: "year must be an integer",
		})
		return
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			ErrorCode:        "INVALID_DATA",
			ErrorDescription: "month must be an integer",
		})
		return
	}

	result, err := generate(c.Request.Context(), customerCode, year, month)
	if err != nil {
		h.handleError(c, err, "INTERNAL_SERVER_ERROR")
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, contentType, result.Content)
}

// handleError maps workflow sentinels to the HTTP contract. Anything
// unclassified is logged and masked behind the endpoint's generic 500 code.
func (h *Handler) handleError(c *gin.Context, err error, serverErrorCode string) {
	switch {
	case errors.Is(err, service.ErrInvalidData):
		c.JSON(http.StatusBadRequest, errorResponse{ErrorCode: "INVALID_DATA", ErrorDescription: err.Error()})
	case errors.Is(err, service.ErrInvalidImage):
		c.JSON(http.StatusBadRequest, errorResponse{ErrorCode: "INVALID_IMAGE", ErrorDescription: "the provided image is invalid"})
	case errors.Is(err, service.ErrInvalidType):
		c.JSON(http.StatusBadRequest, errorResponse{ErrorCode: "INVALID_TYPE", ErrorDescription: "measure type not permitted"})
	case errors.Is(err, service.ErrDoubleReport):
		c.JSON(http.StatusConflict, errorResponse{ErrorCode: "DOUBLE_REPORT", ErrorDescription: "monthly reading already recorded"})
	case errors.Is(err, service.ErrMeasureNotFound):
		c.JSON(http.StatusNotFound, errorResponse{ErrorCode: "MEASURE_NOT_FOUND", ErrorDescription: "measurement not found"})
	case errors.Is(err, service.ErrMeasuresNotFound):
		c.JSON(http.StatusNotFound, errorResponse{ErrorCode: "MEASURES_NOT_FOUND", ErrorDescription: "no measurements found"})
	case errors.Is(err, service.ErrConfirmationDuplicate):
		c.JSON(http.StatusConflict, errorResponse{ErrorCode: "CONFIRMATION_DUPLICATE", ErrorDescription: "measurement already confirmed"})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, errorResponse{ErrorCode: serverErrorCode, ErrorDescription: "an unexpected error occurred"})
	}
}

func parseDatetime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("empty datetime")
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, errors.New("unrecognized datetime format")
}

// decodeImage accepts plain base64 and data-URL payloads.
func decodeImage(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if idx := strings.Index(raw, ";base64,"); idx >= 0 && strings.HasPrefix(raw, "data:") {
		raw = raw[idx+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(raw)
}
