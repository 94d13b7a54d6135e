package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidPeriod        ErrorCode = 102
	ErrCodeInvalidThreshold     ErrorCode = 103
	ErrCodeInvalidOrder         ErrorCode = 104
	ErrCodeInsufficientData     ErrorCode = 105
	ErrCodeMissingParameter     ErrorCode = 106

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound          ErrorCode = 200
	ErrCodeDataSourceUnavailable ErrorCode = 201
	ErrCodeHistoricalDataFailed  ErrorCode = 202

	// Indicator errors (300-399)
	ErrCodeIndicatorCalculation ErrorCode = 300

	// Strategy errors (400-499)
	ErrCodeStrategyConfigError  ErrorCode = 400
	ErrCodeStrategyRuntimeError ErrorCode = 401
	ErrCodeUnknownAggregation   ErrorCode = 402
	ErrCodeDuplicateStrategy    ErrorCode = 403

	// Risk errors (500-599)
	ErrCodeRiskLimitsInvalid ErrorCode = 500
	ErrCodeOrderFailed       ErrorCode = 501
	ErrCodePositionNotFound  ErrorCode = 502

	// Stream errors (600-699)
	ErrCodeStreamDialFailed      ErrorCode = 600
	ErrCodeStreamAuthFailed      ErrorCode = 601
	ErrCodeStreamAuthTimeout     ErrorCode = 602
	ErrCodeStreamUnavailable     ErrorCode = 603
	ErrCodeStreamNotConnected    ErrorCode = 604
	ErrCodeStreamFrameMalformed  ErrorCode = 605
	ErrCodeStreamSubscribeFailed ErrorCode = 606

	// Market data errors (700-799)
	ErrCodeMarketDataFetchFailed ErrorCode = 700
	ErrCodeMarketDataParseFailed ErrorCode = 701
	ErrCodeInvalidTimespan       ErrorCode = 702
	ErrCodeInvalidProvider       ErrorCode = 703
)
