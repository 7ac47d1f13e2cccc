package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/robotalks/spinbot/pkg/link"
	"github.com/robotalks/spinbot/pkg/radio/mqtt"
	"github.com/robotalks/spinbot/pkg/radio/websocket"
)

var (
	mqttURL    = "mqtt://localhost:1883/spinbot/air/"
	listenAddr string
	channel    = mqtt.DefaultChannel
)

func init() {
	if val := os.Getenv("SPINBOT_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL, empty to disable.")
	flag.StringVar(&channel, "channel", channel, "Air channel to monitor on MQTT.")
	flag.StringVar(&listenAddr, "listen", listenAddr, "Serve the websocket air hub at /air on this address.")
}

func describe(pkt []byte) string {
	if t, err := (link.Decoder{SourceID: link.RobotNodeID}).DecodeTelemetry(pkt); err == nil {
		return fmt.Sprintf("[telemetry] bv=%v av=%v ad=%v", t.BatteryVolts, t.AngularVel, t.AngularDir)
	}
	cmd, err := link.Decoder{SourceID: link.TransmitterNodeID}.DecodeCommand(pkt)
	if err != nil {
		return fmt.Sprintf("bad record: %v: %q", err, pkt)
	}
	s := cmd.State()
	return fmt.Sprintf("[command] tx=%v ty=%v en=%v sp=%v", s.TransX, s.TransY, s.Enable, s.VelSP)
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	if mqttURL == "" && listenAddr == "" {
		log.Fatalln("nothing to monitor, specify -mqtt or -listen")
	}

	if mqttURL != "" {
		opts, prefix, err := mqtt.ClientOptionsFromURL(mqttURL)
		if err != nil {
			log.Fatalln(err)
		}
		q := mqtt.NewQueue(opts, prefix)
		q.Sub(channel+"/+", mqtt.Handler(func(topic string, payload []byte) {
			log.Printf("%s: %s", topic, describe(payload))
		}))
		if token := q.Connect(); token.Wait() && token.Error() != nil {
			log.Fatalln(token.Error())
		}
		defer q.Close()
	}

	if listenAddr != "" {
		hub := websocket.NewHub()
		hub.OnFrame = func(pkt []byte) {
			log.Printf("hub(%d): %s", hub.Peers(), describe(pkt))
		}
		http.Handle("/air", hub.Handler())
		log.Printf("air hub listening on %s", listenAddr)
		log.Fatalln(http.ListenAndServe(listenAddr, nil))
	}
	<-(chan struct{})(nil)
}
