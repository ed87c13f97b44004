// Package errors 提供统一的错误处理框架
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Code 错误码
type Code string

const (
	// 通用错误码
	CodeUnknown      Code = "UNKNOWN"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeNotFound     Code = "NOT_FOUND"
	CodeTimeout      Code = "TIMEOUT"
	CodeRateLimited  Code = "RATE_LIMITED"

	// 认证相关
	CodeMissingAPIKey Code = "MISSING_API_KEY"
	CodeInvalidAPIKey Code = "INVALID_API_KEY"
	CodeForbidden     Code = "FORBIDDEN"

	// 排班引擎相关
	CodeConstraintViolation Code = "CONSTRAINT_VIOLATION"
	CodeNoFeasibleSolution  Code = "NO_FEASIBLE_SOLUTION"
	CodeBudgetExceeded      Code = "BUDGET_EXCEEDED"
	CodeInvalidTimeRange    Code = "INVALID_TIME_RANGE"

	// 数据相关
	CodeDatabaseError  Code = "DATABASE_ERROR"
	CodeValidationFail Code = "VALIDATION_FAILED"
)

// AppError 应用错误
type AppError struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Cause      error                  `json:"-"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause 添加原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithField 添加字段
func (e *AppError) WithField(key string, value interface{}) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// New 创建新错误
func New(code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// codeToHTTPStatus 错误码转HTTP状态码
func codeToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeValidationFail, CodeInvalidTimeRange:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeMissingAPIKey, CodeInvalidAPIKey:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeNoFeasibleSolution:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Response HTTP 错误响应体：{"success":false,"error":{...}}
type Response struct {
	Success bool      `json:"success"`
	Error   *AppError `json:"error"`
}

// WriteJSON 写出统一格式的错误响应
func WriteJSON(w http.ResponseWriter, err *AppError) {
	status := err.HTTPStatus
	if status == 0 {
		status = codeToHTTPStatus(err.Code)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Error: err})
}

// Is 检查错误是否为特定类型
func Is(err error, code Code) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	var fault *InfeasibilityFault
	if errors.As(err, &fault) {
		return code == CodeNoFeasibleSolution
	}
	return false
}

// As 透传标准库 errors.As
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode 获取错误码
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	var fault *InfeasibilityFault
	if errors.As(err, &fault) {
		return CodeNoFeasibleSolution
	}
	return CodeUnknown
}

// GetHTTPStatus 获取HTTP状态码
func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	var fault *InfeasibilityFault
	if errors.As(err, &fault) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// 预定义错误
var (
	ErrNotFound     = New(CodeNotFound, "资源不存在")
	ErrInvalidInput = New(CodeInvalidInput, "输入参数无效")
	ErrInternal     = New(CodeInternal, "内部错误")
	ErrTimeout      = New(CodeTimeout, "操作超时")
)

// InvalidInput 创建输入无效错误
func InvalidInput(field, reason string) *AppError {
	return New(CodeInvalidInput, fmt.Sprintf("字段 '%s' 无效: %s", field, reason))
}

// NotFound 创建资源不存在错误
func NotFound(resource, id string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s '%s' 不存在", resource, id))
}

// ConstraintViolation 创建约束违反错误
func ConstraintViolation(constraint, details string) *AppError {
	return New(CodeConstraintViolation, fmt.Sprintf("违反约束 '%s': %s", constraint, details))
}

// InfeasibilityFault 无可行解故障
// 由弧相容传播清空某个变量的值域，或回跳穷尽根变量值域时产生
type InfeasibilityFault struct {
	Variables   []string `json:"variables"`   // 例如 "2025-08-01/attending"
	Constraints []string `json:"constraints"` // 导致值域清空的约束类型
	Reason      string   `json:"reason"`
}

// NewInfeasibilityFault 创建无可行解故障，约束列表去重排序
func NewInfeasibilityFault(reason string, variables []string, constraints []string) *InfeasibilityFault {
	seen := make(map[string]bool, len(constraints))
	uniq := make([]string, 0, len(constraints))
	for _, c := range constraints {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		uniq = append(uniq, c)
	}
	sort.Strings(uniq)
	return &InfeasibilityFault{
		Variables:   append([]string(nil), variables...),
		Constraints: uniq,
		Reason:      reason,
	}
}

// Error 实现 error 接口
func (f *InfeasibilityFault) Error() string {
	return fmt.Sprintf("[%s] %s: 变量 [%s] 约束 [%s]",
		CodeNoFeasibleSolution, f.Reason,
		strings.Join(f.Variables, ", "), strings.Join(f.Constraints, ", "))
}

// HasConstraint 检查诊断是否引用了某约束
func (f *InfeasibilityFault) HasConstraint(name string) bool {
	for _, c := range f.Constraints {
		if c == name {
			return true
		}
	}
	return false
}

// ToAppError 转换为 AppError
func (f *InfeasibilityFault) ToAppError() *AppError {
	err := New(CodeNoFeasibleSolution, f.Reason)
	err.Fields = map[string]interface{}{
		"variables":   f.Variables,
		"constraints": f.Constraints,
	}
	return err
}

// ValidationErrors 验证错误集合
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// ValidationError 单个验证错误
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error 实现 error 接口
func (ve *ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return "验证失败"
	}
	return fmt.Sprintf("验证失败: %s - %s", ve.Errors[0].Field, ve.Errors[0].Message)
}

// Add 添加验证错误
func (ve *ValidationErrors) Add(field, message string) {
	ve.Errors = append(ve.Errors, ValidationError{Field: field, Message: message})
}

// HasErrors 检查是否有错误
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// ToAppError 转换为 AppError
func (ve *ValidationErrors) ToAppError() *AppError {
	err := New(CodeValidationFail, "验证失败")
	err.Fields = make(map[string]interface{})
	for _, e := range ve.Errors {
		if _, exists := err.Fields[e.Field]; exists {
			continue
		}
		err.Fields[e.Field] = e.Message
	}
	err.Details = ve.Error()
	return err
}
