// Package mqtt provides the broker connection for live telemetry fan-out.
//
// Nodes publish readings, events and node status to a site-local broker so
// dashboards and alerting can follow the system in real time without
// polling the shared store. The store remains the system of record; the
// broker is best-effort and a node runs fine without it.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.Reading("G4", "M0")
//	client.Publish(topic, []byte(r.AsCSV()), 1, true)
package mqtt
