package driver

// SwapStartService replaces the function Create uses to start a driver.
func SwapStartService(f func(Browser, string, int, ...ServiceOption) (*Service, error)) (restore func()) {
	old := startService
	startService = f
	return func() { startService = old }
}

// SwapTrace replaces the logger of wait and find attempts.
func SwapTrace(f func(format string, args ...interface{})) (restore func()) {
	old := tracef
	tracef = f
	return func() { tracef = old }
}
