// Command utim runs the agent against a local host application simulated on
// a queue pair: it injects NETWORK_READY and prints the session key that
// comes back once the SRP exchange with Uhost completes.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/connax-utim/utim"
	"github.com/connax-utim/utim/packet"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	configPath := pflag.StringP("config", "c", "", "path to the YAML config file")
	metricsURL := pflag.String("metrics", "", "listen address for /metrics (empty disables)")
	pflag.Parse()

	config := utim.DefaultConfig()
	if *configPath != "" {
		var err error
		if config, err = utim.LoadConfig(*configPath); err != nil {
			log.Printf("config error: %v", err)
			os.Exit(1)
		}
	}

	if *metricsURL != "" {
		go func() {
			if err := utim.Httpd(*metricsURL); err != nil {
				log.Printf("httpd error: %v", err)
			}
		}()
	}

	rxQueue := utim.NewQueue[[]byte]()
	txQueue := utim.NewQueue[[]byte]()

	// The device side of the datalink: same manager, queue pair crossed.
	device, err := utim.NewConnectivityManager(config, rxQueue, txQueue)
	if err != nil {
		log.Printf("connectivity error: %v", err)
		os.Exit(1)
	}
	defer device.Stop()

	agent, err := utim.New(txQueue, rxQueue, utim.WithConfig(config))
	if err != nil {
		log.Printf("utim error: %v", err)
		os.Exit(1)
	}
	defer agent.Stop()

	ctx := context.Background()
	agent.Run(ctx)

	ready := utim.RoutedItem{Type: utim.DataTypeDevice, Body: []byte{packet.InboundNetworkReady}}
	log.Printf("sending network ready")
	if ok, err := device.Send(ready); err != nil || !ok {
		log.Printf("send failed: ok=%t, error=%v", ok, err)
		os.Exit(1)
	}

	for {
		item, ok := device.Receive()
		if !ok {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		fmt.Printf("received session key: %s\n", hex.EncodeToString(item.Body))
		break
	}
}
