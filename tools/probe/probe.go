// Command probe performs one login and one data fetch against the
// vendor API and prints the normalized snapshot as JSON. Useful for
// verifying credentials and the vendor's login behavior (the service
// answers 200 on bad credentials; only the cookie set tells them
// apart) before configuring the worker.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/septivank/water-softener-worker/internal/bwt"
	"github.com/septivank/water-softener-worker/internal/sensor"
	"go.uber.org/zap"
)

func main() {
	baseURL := flag.String("base-url", "https://www.bwt-monservice.com", "Vendor base URL")
	username := flag.String("username", "", "Account username")
	password := flag.String("password", "", "Account password")
	deviceKey := flag.String("device-key", "", "Receipt line key of the device")
	price := flag.Float64("price", 3.5, "Water price per cubic meter")
	timeout := flag.Duration("timeout", 60*time.Second, "HTTP request timeout")
	flag.Parse()

	if *username == "" || *password == "" || *deviceKey == "" {
		log.Fatal("username, password and device-key are required")
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	client := bwt.NewClient(bwt.Config{
		BaseURL:   *baseURL,
		Username:  *username,
		Password:  *password,
		DeviceKey: *deviceKey,
		Timeout:   *timeout,
	}, logger)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*(*timeout))
	defer cancel()

	snapshot, err := client.FetchData(ctx)
	if err != nil {
		log.Fatalf("Fetch failed: %v", err)
	}
	if snapshot == nil {
		log.Println("Device has no history yet")
		return
	}

	out := struct {
		Snapshot *bwt.DeviceSnapshot `json:"snapshot"`
		Readings []sensor.Reading    `json:"readings"`
	}{
		Snapshot: snapshot,
		Readings: sensor.Readings(snapshot, *price),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
}
