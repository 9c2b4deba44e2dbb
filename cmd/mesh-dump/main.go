// Command mesh-dump connects to a radio companion process and writes every
// decoded packet record to a JSONL file, one line per packet, grounded on
// cmd/ami-events-logger's flag set and JSONL encoder loop, adapted from AMI
// raw-message capture to radio.PacketRecord capture.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/loranexus/loranexus/internal/radio"
)

type logEntry struct {
	Timestamp time.Time          `json:"timestamp"`
	From      string             `json:"from"`
	To        string             `json:"to"`
	Port      radio.Port         `json:"port,omitempty"`
	HopsAway  int                `json:"hops_away"`
	ViaMQTT   bool               `json:"via_mqtt"`
	RxSNR     *float64           `json:"rx_snr,omitempty"`
	RxRSSI    *int               `json:"rx_rssi,omitempty"`
	Record    radio.PacketRecord `json:"record,omitempty"`
}

func main() {
	host := flag.String("host", "127.0.0.1", "radio companion process host")
	port := flag.Int("port", 4403, "radio companion process TCP port")
	outputPath := flag.String("output", "mesh-dump.jsonl", "output file path (JSONL format)")
	duration := flag.Duration("duration", 0, "stop after this duration (0 = run until interrupted)")
	verbose := flag.Bool("verbose", false, "print packets to stdout in addition to the file")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	outFile, err := os.Create(*outputPath)
	if err != nil {
		log.Fatalf("failed to create output file: %v", err)
	}
	defer outFile.Close()
	encoder := json.NewEncoder(outFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), *duration)
		defer cancel()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("received interrupt signal, stopping...")
		cancel()
	}()

	conn := radio.NewConnector(*host, *port, time.Second, 30*time.Second, logger)
	if err := conn.Start(ctx); err != nil {
		log.Fatalf("failed to start radio connector: %v", err)
	}
	log.Printf("mesh-dump connecting to %s:%d, writing to %s", *host, *port, *outputPath)

	count := 0
	startTime := time.Now()
	for {
		select {
		case <-ctx.Done():
			elapsed := time.Since(startTime)
			log.Printf("shutdown complete: %d packets in %v, saved to %s", count, elapsed.Round(time.Second), *outputPath)
			return
		case pr := <-conn.Packets():
			count++
			entry := logEntry{
				Timestamp: pr.ReceivedAt,
				From:      pr.FromID,
				To:        pr.ToID,
				HopsAway:  pr.HopsAway(),
				ViaMQTT:   pr.ViaMQTT,
				RxSNR:     pr.RxSNR,
				RxRSSI:    pr.RxRSSI,
				Record:    pr,
			}
			if pr.Decoded != nil {
				entry.Port = pr.Decoded.Port
			}
			if err := encoder.Encode(entry); err != nil {
				log.Printf("error encoding entry: %v", err)
				continue
			}
			if *verbose {
				fmt.Printf("[%s] %s -> %s port=%s hops=%d\n",
					entry.Timestamp.Format("2006-01-02 15:04:05.000"),
					entry.From, entry.To, entry.Port, entry.HopsAway)
			}
		}
	}
}
