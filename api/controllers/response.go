package controllers

import (
	"clientrisk-service/service/anomaly"
	"clientrisk-service/service/database"
	"clientrisk-service/service/pipeline"
	"clientrisk-service/service/reader"
	"clientrisk-service/service/statistics"
	"errors"
	"net/http"

	"github.com/go-chi/render"
)

// APIResponse 统一API响应结构
type APIResponse struct {
	Status int         `json:"status" example:"0"`
	Msg    string      `json:"msg" example:"操作成功"`
	Data   interface{} `json:"data,omitempty"`
}

// SuccessResponse 成功响应
func SuccessResponse(msg string, data interface{}) *APIResponse {
	return &APIResponse{Status: 0, Msg: msg, Data: data}
}

// BadRequestResponse 参数错误响应
func BadRequestResponse(msg string, err error) *APIResponse {
	return errorResponse(http.StatusBadRequest, msg, err)
}

// NotFoundResponse 资源不存在响应
func NotFoundResponse(msg string, err error) *APIResponse {
	return errorResponse(http.StatusNotFound, msg, err)
}

// ConflictResponse 冲突响应
func ConflictResponse(msg string, err error) *APIResponse {
	return errorResponse(http.StatusConflict, msg, err)
}

// InternalErrorResponse 服务器内部错误响应
func InternalErrorResponse(msg string, err error) *APIResponse {
	return errorResponse(http.StatusInternalServerError, msg, err)
}

func errorResponse(status int, msg string, err error) *APIResponse {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	return &APIResponse{Status: status, Msg: msg}
}

// ErrorResponse 按错误类型选择响应
func ErrorResponse(msg string, err error) *APIResponse {
	switch {
	case reader.IsInputError(err),
		errors.Is(err, anomaly.ErrEmptyPopulation),
		errors.Is(err, anomaly.ErrInsufficientFeatures):
		return BadRequestResponse(msg, err)
	case errors.Is(err, database.ErrClientNotFound),
		errors.Is(err, statistics.ErrNoData):
		return NotFoundResponse(msg, err)
	case errors.Is(err, pipeline.ErrBatchInProgress):
		return ConflictResponse(msg, err)
	default:
		return InternalErrorResponse(msg, err)
	}
}

// respond 写出响应，Status 非 0 时同时作为 HTTP 状态码
func respond(w http.ResponseWriter, r *http.Request, resp *APIResponse) {
	if resp.Status != 0 {
		render.Status(r, resp.Status)
	}
	render.JSON(w, r, resp)
}
