package parser

// ParseError explains why a message was not turned into a signal or an update. The
// package-level values are the only instances, so errors.Is works on them directly.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "Сообщение не распознано: " + e.Reason
}

var (
	ErrEmpty              = &ParseError{Reason: "пустой текст"}
	ErrNoDirection        = &ParseError{Reason: "не найдено направление сделки"}
	ErrNoEntry            = &ParseError{Reason: "не найдена цена входа"}
	ErrNoStopLoss         = &ParseError{Reason: "не найден стоп-лосс"}
	ErrImmediateExecution = &ParseError{Reason: "рыночный вход игнорируется"}
)
