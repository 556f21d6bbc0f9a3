// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 通用错误类型
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeError      ErrorType = "processing_error"
	ErrorTypeTimeout    ErrorType = "timeout"

	// 模型调用失败（网络、鉴权、配额）。管线不重试，直接向上传递
	ErrorTypeTransport ErrorType = "transport_error"

	// 模型有回复，但结构不符合预期。每种请求变体一种
	ErrorTypeAnalysisParse    ErrorType = "analysis_parse_error"
	ErrorTypeOutlineParse     ErrorType = "outline_parse_error"
	ErrorTypeScenePromptParse ErrorType = "scene_prompt_parse_error"
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewProcessingError 创建处理错误
func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

// NewTimeoutError 等待超时
func NewTimeoutError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeTimeout, message, originalError)
}

// NewTransportError 模型服务不可达或返回错误
func NewTransportError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeTransport, message, originalError)
}

// NewAnalysisParseError 剧本分析结果无法解析
func NewAnalysisParseError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeAnalysisParse, message, originalError)
}

// NewOutlineParseError 故事大纲无法解析
func NewOutlineParseError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeOutlineParse, message, originalError)
}

// NewScenePromptParseError 场景提示词无法解析
func NewScenePromptParseError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeScenePromptParse, message, originalError)
}

// TypeOf 返回错误链中第一个 AppError 的类型，没有则返回空字符串
func TypeOf(err error) ErrorType {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type
	}
	return ""
}

func isType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool { return isType(err, ErrorTypeValidation) }

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool { return isType(err, ErrorTypeNotFound) }

// IsTransportError 检查是否为模型调用错误
func IsTransportError(err error) bool { return isType(err, ErrorTypeTransport) }

func IsTimeoutError(err error) bool { return isType(err, ErrorTypeTimeout) }

func IsAnalysisParseError(err error) bool    { return isType(err, ErrorTypeAnalysisParse) }
func IsOutlineParseError(err error) bool     { return isType(err, ErrorTypeOutlineParse) }
func IsScenePromptParseError(err error) bool { return isType(err, ErrorTypeScenePromptParse) }

// IsParseError 任意一种解析错误
func IsParseError(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeAnalysisParse, ErrorTypeOutlineParse, ErrorTypeScenePromptParse:
		return true
	}
	return false
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	case ErrorTypeTransport:
		return "LLM_TRANSPORT_ERROR"
	case ErrorTypeAnalysisParse:
		return "ANALYSIS_PARSE_ERROR"
	case ErrorTypeOutlineParse:
		return "OUTLINE_PARSE_ERROR"
	case ErrorTypeScenePromptParse:
		return "SCENE_PROMPT_PARSE_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError 包装现有错误
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		// 如果已经是 AppError，保留原类型，只更新消息
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
		}
	}

	return NewAppError(errType, message, err)
}
