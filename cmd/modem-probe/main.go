package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/kursadbilgin/notify-gateway/internal/modem"
	"github.com/kursadbilgin/notify-gateway/internal/observability"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	port := flag.String("port", os.Getenv("MODEM_PORT"), "serial device, e.g. /dev/ttyUSB0 or COM3")
	list := flag.Bool("list", false, "list serial ports and exit")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall probe timeout")
	flag.Parse()

	logger, err := observability.NewLogger("info", "modem-probe")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if *list {
		ports, err := modem.ListPorts()
		if err != nil {
			logger.Fatal("failed to list serial ports", zap.Error(err))
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	if *port == "" {
		logger.Fatal("no serial port given, use -port or MODEM_PORT")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	result, err := modem.DetectBaudRate(ctx, modem.OpenSerial, *port, modem.CommonBaudRates, logger)
	if err != nil {
		logger.Fatal("modem detection failed", zap.String("port", *port), zap.Error(err))
	}

	fmt.Printf("port:         %s\n", *port)
	fmt.Printf("baud rate:    %d\n", result.BaudRate)
	fmt.Printf("signal:       %d\n", result.Signal)
	fmt.Printf("operator:     %s\n", result.Operator)
	fmt.Printf("manufacturer: %s\n", result.Manufacturer)
	fmt.Printf("model:        %s\n", result.Model)
	fmt.Printf("\nset MODEM_BAUDRATE=%d\n", result.BaudRate)
}
