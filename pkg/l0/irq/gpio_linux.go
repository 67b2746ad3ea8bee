//go:build linux
// +build linux

package irq

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sys/unix"
)

const (
	gpioBase = "/sys/class/gpio"

	gpioPollSlice = 100 * time.Millisecond
	exportTimeout = 2 * time.Second
)

// GPIO fires on the falling edge of a sysfs GPIO line.
type GPIO struct {
	line  int
	value *os.File
}

// OpenGPIO exports the line and configures it as a falling edge input.
func OpenGPIO(line int) (*GPIO, error) {
	dir := fmt.Sprintf("%s/gpio%d", gpioBase, line)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err = writeFile(gpioBase+"/export", strconv.Itoa(line)); err != nil {
			return nil, err
		}
	}
	// udev may take a while to fix permissions of newly exported lines.
	var err error
	for waited := time.Duration(0); waited < exportTimeout; waited += 10 * time.Millisecond {
		if err = writeFile(dir+"/direction", "in"); err == nil || !os.IsPermission(err) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		return nil, err
	}
	if err = writeFile(dir+"/edge", "falling"); err != nil {
		return nil, err
	}
	f, err := os.Open(dir + "/value")
	if err != nil {
		return nil, err
	}
	g := &GPIO{line: line, value: f}
	// consume the initial level so the first poll waits for an edge.
	g.clear()
	return g, nil
}

// WaitEvent implements Source.
func (g *GPIO) WaitEvent(ctx context.Context) error {
	fds := []unix.PollFd{{Fd: int32(g.value.Fd()), Events: unix.POLLPRI | unix.POLLERR}}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fds[0].Revents = 0
		n, err := unix.Poll(fds, int(gpioPollSlice/time.Millisecond))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return os.NewSyscallError("poll", err)
		}
		if n > 0 && fds[0].Revents&(unix.POLLPRI|unix.POLLERR) != 0 {
			g.clear()
			return nil
		}
	}
}

// Close releases the value file. The line stays exported.
func (g *GPIO) Close() error {
	return g.value.Close()
}

func (g *GPIO) clear() {
	var buf [8]byte
	if _, err := g.value.Seek(0, 0); err != nil {
		glog.Warningf("gpio%d: seek: %v", g.line, err)
		return
	}
	if _, err := g.value.Read(buf[:]); err != nil {
		glog.Warningf("gpio%d: read: %v", g.line, err)
	}
}

func writeFile(name, content string) error {
	f, err := os.OpenFile(name, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(content)
	return err
}
