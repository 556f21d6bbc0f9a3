// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest     = "BAD_REQUEST"
	ErrorNotFound       = "NOT_FOUND"
	ErrorInternalError  = "INTERNAL_ERROR"
	ErrorRateLimited    = "RATE_LIMIT_EXCEEDED"
	ErrorRequestTimeout = "REQUEST_TIMEOUT"

	// 剧本分析相关错误
	ErrorAnalysisNotFound = "ANALYSIS_NOT_FOUND"
	ErrorTaskNotFound     = "TASK_NOT_FOUND"

	// 模型相关错误
	ErrorLLMServiceUnavailable = "LLM_SERVICE_UNAVAILABLE"
	ErrorModelResponseInvalid  = "MODEL_RESPONSE_INVALID"

	// 文件相关错误
	ErrorFileUploadFailed = "FILE_UPLOAD_FAILED"
	ErrorFileInvalid      = "FILE_INVALID"
)
