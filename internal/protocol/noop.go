package protocol

type noopLogger struct{}

func (noopLogger) Printf(string, ...interface{}) {}
func (noopLogger) Debugf(string, ...interface{}) {}

type noopObserver struct{}

func (noopObserver) ObserveExchange(uint64, bool)  {}
func (noopObserver) ObserveError(string)           {}
func (noopObserver) ObserveRecovery(uint64)        {}
func (noopObserver) ObserveEdge(bool)              {}
