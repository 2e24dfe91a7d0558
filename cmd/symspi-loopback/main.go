// Command symspi-loopback wires two symspi Devices back to back, in
// process, over a synthetic full-duplex bus and a pair of signal lines,
// and drives a handful of exchanges to demonstrate the handshake without
// any real hardware.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ehrlich-b/symspi"
	"github.com/ehrlich-b/symspi/internal/logging"
)

func main() {
	var (
		count   = flag.Int("count", 5, "number of exchanges to drive")
		size    = flag.Int("size", 8, "payload size in bytes")
		verbose = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)

	master, slave := newLoopbackPair(logger, *size)
	defer master.Close()
	defer slave.Close()

	for i := 0; i < *count; i++ {
		id, err := master.Exchange(nil, false)
		if err != nil {
			logger.Warn("exchange rejected", "attempt", i, "error", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		logger.Info("exchange started", "attempt", i, "id", id)
		time.Sleep(100 * time.Millisecond)
	}

	fmt.Println(master.Diagnostics())
}

func newLoopbackPair(logger *logging.Logger, size int) (master, slave *symspi.Device) {
	busM, busS := symspi.NewSharedBusPair()
	lineM := symspi.NewFakeLine() // master's own flag, slave's view of it
	lineS := symspi.NewFakeLine() // slave's own flag, master's view of it

	cfg := symspi.DefaultConfig()
	cfg.Role = symspi.RoleMaster
	cfg.HardwareReady = true
	master = symspi.NewDevice(cfg, busM, lineM, lineS, logger.WithTag("master"), nil)

	scfg := symspi.DefaultConfig()
	scfg.Role = symspi.RoleSlave
	slave = symspi.NewDevice(scfg, busS, lineS, lineM, logger.WithTag("slave"), nil)

	tx := make([]byte, size)
	for i := range tx {
		tx[i] = byte(i)
	}
	if err := master.Init(&symspi.Xfer{Size: size, TX: tx, Done: logDone(logger, "master")}); err != nil {
		logger.Error("master init failed", "error", err)
		os.Exit(1)
	}
	if err := slave.Init(&symspi.Xfer{Size: size, TX: make([]byte, size), Done: logDone(logger, "slave")}); err != nil {
		logger.Error("slave init failed", "error", err)
		os.Exit(1)
	}
	return master, slave
}

func logDone(logger *logging.Logger, who string) symspi.DoneFunc {
	return func(done *symspi.Xfer, nextXferID int32, startImmediately *bool, handle any) symspi.DoneResult {
		logger.Info("exchange complete", "who", who, "id", done.ID, "count", done.Count)
		return symspi.DoneResult{}
	}
}
