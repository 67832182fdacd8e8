package driver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/golang/glog"
)

// newExecCommand is replaced in tests.
var newExecCommand = exec.Command

// ServiceOption configures a Service instance.
type ServiceOption func(*Service) error

// Output specifies that the driver process should log to the provided
// writer.
func Output(w io.Writer) ServiceOption {
	return func(s *Service) error {
		s.output = w
		return nil
	}
}

// StartupTimeout bounds how long to wait for the driver to answer on its
// status endpoint.
func StartupTimeout(d time.Duration) ServiceOption {
	return func(s *Service) error {
		if d <= 0 {
			return fmt.Errorf("%w: startup timeout must be positive, got %v", ErrInvalidArgument, d)
		}
		s.startupTimeout = d
		return nil
	}
}

// Service controls a locally-running driver process (chromedriver,
// geckodriver or IEDriverServer). The process is tracked by its handle for
// the life of the Service; Kill terminates exactly that process and nothing
// else on the host.
type Service struct {
	addr           string
	cmd            *exec.Cmd
	shutdownPath   string
	startupTimeout time.Duration
	pollInterval   time.Duration
	exited         chan struct{}
	waitErr        error

	xvfb *FrameBuffer

	output io.Writer
}

// NewService starts the driver binary for browser b at path, listening on
// port, and waits for it to accept connections.
func NewService(b Browser, path string, port int, opts ...ServiceOption) (*Service, error) {
	if path == "" {
		path = b.DriverBinary()
	}
	var (
		cmd       *exec.Cmd
		urlPrefix string
	)
	switch b {
	case Chrome, ChromeHeadless:
		cmd = newExecCommand(path, "--port="+strconv.Itoa(port), "--url-base=wd/hub")
		urlPrefix = "/wd/hub"
	case Firefox, FirefoxHeadless:
		cmd = newExecCommand(path, "--port", strconv.Itoa(port))
	case InternetExplorer:
		cmd = newExecCommand(path, "/port="+strconv.Itoa(port))
	default:
		return nil, fmt.Errorf("%w: no driver service for browser %q", ErrInvalidArgument, b)
	}
	s, err := newService(cmd, urlPrefix, port, opts...)
	if err != nil {
		return nil, err
	}
	if b == Chrome || b == ChromeHeadless {
		s.shutdownPath = "/shutdown"
	}
	if err := s.start(); err != nil {
		return nil, err
	}
	return s, nil
}

func newService(cmd *exec.Cmd, urlPrefix string, port int, opts ...ServiceOption) (*Service, error) {
	s := &Service{
		addr:           fmt.Sprintf("http://localhost:%d%s", port, urlPrefix),
		startupTimeout: 30 * time.Second,
		pollInterval:   DefaultPollInterval,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			s.stopFrameBuffer()
			return nil, err
		}
	}
	cmd.Stderr = s.output
	cmd.Stdout = s.output
	if s.xvfb != nil {
		withEnv(cmd, s.xvfb.Env()...)
	}
	s.cmd = cmd
	return s, nil
}

func (s *Service) start() error {
	if err := s.cmd.Start(); err != nil {
		s.stopFrameBuffer()
		return fmt.Errorf("starting %s: %w", s.cmd.Path, err)
	}
	s.exited = make(chan struct{})
	go func() {
		s.waitErr = s.cmd.Wait()
		close(s.exited)
	}()
	glog.V(1).Infof("started %s (pid %d) at %s", s.cmd.Path, s.cmd.Process.Pid, s.addr)

	deadline := time.Now().Add(s.startupTimeout)
	for time.Now().Before(deadline) {
		select {
		case <-s.exited:
			s.stopFrameBuffer()
			return fmt.Errorf("%w: %s exited before accepting connections: %v", ErrRemoteProtocol, s.cmd.Path, s.waitErr)
		case <-time.After(s.pollInterval):
		}
		resp, err := http.Get(s.addr + "/status")
		if err != nil {
			continue
		}
		resp.Body.Close()
		switch resp.StatusCode {
		// Legacy servers answer Forbidden or BadRequest; current drivers
		// answer OK.
		case http.StatusForbidden, http.StatusBadRequest, http.StatusOK:
			return nil
		}
	}
	s.Kill() // ignore error.
	return fmt.Errorf("%w: driver did not respond at %s within %v", ErrTimeout, s.addr, s.startupTimeout)
}

// Addr returns the URL of the WebDriver endpoint served by the driver.
func (s *Service) Addr() string {
	return s.addr
}

// Exited reports whether the driver process has terminated.
func (s *Service) Exited() bool {
	select {
	case <-s.exited:
		return true
	default:
		return false
	}
}

// Stop asks the driver to shut down, and kills it if it does not exit within
// the startup timeout. The frame buffer, if any, is stopped afterwards.
func (s *Service) Stop() error {
	if s.shutdownPath == "" || s.Exited() {
		return s.Kill()
	}
	resp, err := http.Get(s.addr + s.shutdownPath)
	if err != nil {
		glog.Warningf("shutdown request to %s failed: %v", s.addr, err)
		return s.Kill()
	}
	resp.Body.Close()
	select {
	case <-s.exited:
	case <-time.After(s.startupTimeout):
		return s.Kill()
	}
	return s.stopFrameBuffer()
}

// Kill terminates the driver process this Service started, and the frame
// buffer if it owns one. Killing an already-exited process is not an error.
func (s *Service) Kill() error {
	var errs []error
	if !s.Exited() {
		if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = append(errs, fmt.Errorf("killing %s (pid %d): %w", s.cmd.Path, s.cmd.Process.Pid, err))
		}
		<-s.exited
	}
	if err := s.stopFrameBuffer(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Service) stopFrameBuffer() error {
	if s.xvfb == nil {
		return nil
	}
	fb := s.xvfb
	s.xvfb = nil
	return fb.Stop()
}
