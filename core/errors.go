package core

// DomainError 是领域层的统一错误类型。
//
// 超时与依赖不可用永远在编排器内部通过降级消化，不会作为用户可见错误传播；
// 只有最终兜底的关系库查询失败（QUERY_FAILED）允许上抛。
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "TIMEOUT"）
	Message string
	Module  string // 模块名称（如 "store", "vector", "queue"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// GetDomainError 获取 DomainError，如果不是则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	if domainErr, ok := err.(*DomainError); ok {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound     = "NOT_FOUND"     // 资源不存在
	ErrorCodeNotSupported = "NOT_SUPPORTED" // 操作不支持
	ErrorCodeTimeout      = "TIMEOUT"       // 依赖超时（本地降级，不上抛）
	ErrorCodeUnavailable  = "UNAVAILABLE"   // 依赖不可用（本地降级，不上抛）
	ErrorCodeQueryFailed  = "QUERY_FAILED"  // 兜底关系库查询失败（允许上抛）
	ErrorCodeInvalidInput = "INVALID_INPUT" // 输入无效
)

// 模块名称常量
const (
	ModuleStore  = "store"  // 关系库
	ModuleCache  = "cache"  // 宽列缓存
	ModuleVector = "vector" // 向量检索
	ModuleQueue  = "queue"  // 任务队列
	ModuleFeed   = "feed"   // 检索编排
	ModuleSignal = "signal" // 互动信号
)

func codeOf(err error) string {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code
	}
	return ""
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool { return codeOf(err) == ErrorCodeNotFound }

// IsTimeout 检查错误是否为依赖超时
func IsTimeout(err error) bool { return codeOf(err) == ErrorCodeTimeout }

// IsUnavailable 检查错误是否为依赖不可用
func IsUnavailable(err error) bool { return codeOf(err) == ErrorCodeUnavailable }

// IsQueryFailed 检查错误是否为兜底查询失败
func IsQueryFailed(err error) bool { return codeOf(err) == ErrorCodeQueryFailed }

// 共享错误实例
var (
	// ErrCacheNotFound 表示用户缓存分区不存在（视为缓存未命中，不是错误）
	ErrCacheNotFound = NewDomainError(ModuleCache, ErrorCodeNotFound, "cache: user feed not found")

	// ErrStoreNotFound 表示 key 不存在
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: not found")

	// ErrVectorUnavailable 表示向量检索服务不可用
	ErrVectorUnavailable = NewDomainError(ModuleVector, ErrorCodeUnavailable, "vector: service unavailable")
)
