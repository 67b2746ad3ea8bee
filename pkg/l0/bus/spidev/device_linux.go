//go:build linux
// +build linux

package spidev

import (
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/robotalks/h7link/pkg/l0/bus"
)

const (
	iocMessage1      uint = 0x40206b00
	iocWrMode        uint = 0x40016b01
	iocWrBitsPerWord uint = 0x40016b03
	iocWrMaxSpeedHz  uint = 0x40046b04
)

// iocTransfer mirrors struct spi_ioc_transfer.
type iocTransfer struct {
	txBuf          uint64
	rxBuf          uint64
	length         uint32
	speedHz        uint32
	delayUsecs     uint16
	bitsPerWord    uint8
	csChange       uint8
	txNbits        uint8
	rxNbits        uint8
	wordDelayUsecs uint8
	pad            uint8
}

// Device is an opened spidev node.
type Device struct {
	file *os.File
	conf Config
}

// Open opens and configures the device.
func Open(conf Config) (*Device, error) {
	f, err := os.OpenFile(conf.Path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	d := &Device{file: f, conf: conf}
	mode, bits := conf.Mode, conf.BitsPerWord
	if bits == 0 {
		bits = 8
	}
	errno := d.ioctl(iocWrMode, unsafe.Pointer(&mode))
	if errno == 0 {
		errno = d.ioctl(iocWrBitsPerWord, unsafe.Pointer(&bits))
	}
	if errno == 0 && conf.SpeedHz != 0 {
		speed := conf.SpeedHz
		errno = d.ioctl(iocWrMaxSpeedHz, unsafe.Pointer(&speed))
	}
	if errno != 0 {
		d.file.Close()
		return nil, os.NewSyscallError("ioctl", errno)
	}
	return d, nil
}

// Close implements io.Closer.
func (d *Device) Close() error {
	return d.file.Close()
}

// Transfer implements bus.Transferer.
func (d *Device) Transfer(tx, rx []byte) error {
	if err := bus.CheckSize(tx, rx); err != nil {
		return err
	}
	if len(tx) == 0 {
		return nil
	}
	xfer := iocTransfer{
		txBuf:       uint64(uintptr(unsafe.Pointer(&tx[0]))),
		rxBuf:       uint64(uintptr(unsafe.Pointer(&rx[0]))),
		length:      uint32(len(tx)),
		speedHz:     d.conf.SpeedHz,
		bitsPerWord: d.conf.BitsPerWord,
	}
	errno := d.ioctl(iocMessage1, unsafe.Pointer(&xfer))
	runtime.KeepAlive(tx)
	runtime.KeepAlive(rx)
	if errno != 0 {
		return os.NewSyscallError("ioctl", errno)
	}
	return nil
}

func (d *Device) ioctl(req uint, ptr unsafe.Pointer) unix.Errno {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.file.Fd(), uintptr(req), uintptr(ptr))
	return errno
}
