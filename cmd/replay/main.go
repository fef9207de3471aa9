/*
@Author: Lzww
@LastEditTime: 2025-10-03 10:50:00
@Description: CLI harness: replay a captured datagram trace or listen live
@Language: Go 1.23.4
*/

package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/moonlight-stream/rtpafec"
	"github.com/moonlight-stream/rtpafec/scheduler"
	"github.com/moonlight-stream/rtpafec/transport"
)

func main() {
	app := &cli.App{
		Name:  "replay",
		Usage: "drive an rtpafec.Queue from a captured trace or a live socket",
		Commands: []*cli.Command{
			replayCommand(),
			listenCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func replayCommand() *cli.Command {
	return &cli.Command{
		Name:  "trace",
		Usage: "feed a recorded trace file (4-byte-length-prefixed datagrams) through the queue",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Required: true},
			&cli.UintFlag{Name: "frame-ms", Value: 5, Usage: "AudioPacketDurationMs"},
			&cli.BoolFlag{Name: "debug-validate", Usage: "enable the recovery self-check"},
		},
		Action: func(c *cli.Context) error {
			logger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			f, err := os.Open(c.String("file"))
			if err != nil {
				return err
			}
			defer f.Close()

			q := rtpafec.Initialize(rtpafec.Config{
				AudioPacketDurationMs: uint32(c.Uint("frame-ms")),
				Logger:                logger,
				Registerer:            prometheus.DefaultRegisterer,
				DebugValidateRecovery: c.Bool("debug-validate"),
			})
			defer q.Cleanup()

			return replayTrace(f, q, logger)
		},
	}
}

func replayTrace(f *os.File, q *rtpafec.Queue, logger *zap.Logger) error {
	var lenBuf [4]byte
	var packetBuf [65535]byte

	for {
		if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		if n > uint32(len(packetBuf)) {
			return fmt.Errorf("trace record too large: %d bytes", n)
		}
		if _, err := io.ReadFull(f, packetBuf[:n]); err != nil {
			return err
		}

		status := q.AddPacket(packetBuf[:n])
		drainStatus(q, status, logger)
	}
}

// logRegistryStats periodically emits a metric family count, a cheap
// liveness signal that the listen command is still scraping cleanly. Unlike
// PollTimeouts it never touches q, so it is safe to drive from the scheduler
// Timer's own background goroutine.
func logRegistryStats(reg *prometheus.Registry, logger *zap.Logger) {
	families, err := reg.Gather()
	if err != nil {
		logger.Warn("metrics gather failed", zap.Error(err))
		return
	}
	logger.Debug("metrics snapshot", zap.Int("families", len(families)))
}

func drainStatus(q *rtpafec.Queue, status rtpafec.Status, logger *zap.Logger) {
	switch status {
	case rtpafec.StatusHandleNow:
		logger.Debug("handle-now packet admitted")
	case rtpafec.StatusPacketReady:
		for {
			_, n, ok := q.GetQueuedPacket(0)
			if !ok {
				break
			}
			if n == 0 {
				logger.Info("emitted discontinuity placeholder")
			} else {
				logger.Info("emitted packet", zap.Int("bytes", n))
			}
		}
	}
}

func listenCommand() *cli.Command {
	return &cli.Command{
		Name:  "listen",
		Usage: "receive a live UDP stream and drive the queue in real time",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":48000"},
			&cli.UintFlag{Name: "frame-ms", Value: 5},
			&cli.StringFlag{Name: "metrics-addr", Value: ":9090"},
		},
		Action: func(c *cli.Context) error {
			logger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			reg := prometheus.NewRegistry()
			q := rtpafec.Initialize(rtpafec.Config{
				AudioPacketDurationMs: uint32(c.Uint("frame-ms")),
				Logger:                logger,
				Registerer:            reg,
			})
			defer q.Cleanup()

			go func() {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
				if err := http.ListenAndServe(c.String("metrics-addr"), mux); err != nil {
					logger.Warn("metrics server stopped", zap.Error(err))
				}
			}()

			conn, err := net.ListenPacket("udp", c.String("addr"))
			if err != nil {
				return err
			}
			defer conn.Close()

			const pollInterval = 2 * time.Millisecond
			recv := transport.NewReceiver(conn, transport.NoCrypt(), q, logger, pollInterval)
			defer recv.Close()

			// q is single-threaded (see rtpafec.Queue): PollTimeouts runs here,
			// on the same goroutine as AddPacket/GetQueuedPacket, every time
			// ReadOnce returns - either because a datagram arrived or because
			// pollInterval elapsed with nothing to receive.
			timer := scheduler.NewTimer()
			defer timer.Close()
			timer.Every(func() { logRegistryStats(reg, logger) }, 5*time.Second)

			logger.Info("listening", zap.String("addr", c.String("addr")))
			for {
				if _, err := recv.ReadOnce(func(status rtpafec.Status) {
					drainStatus(q, status, logger)
				}); err != nil {
					return err
				}
				q.PollTimeouts()
			}
		},
	}
}
