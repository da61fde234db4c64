// Package mqtt provides MQTT client connectivity for PolyAutomate.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// PolyAutomate uses MQTT as the message bus between the control plane and
// the external automation engine that runs task scripts. The broker
// decouples the control plane from the engine's runtime.
//
//	PolyAutomate Core ↔ MQTT Broker ↔ Automation Engine
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all execution status reports
//	err = client.Subscribe(mqtt.Topics{}.AllExecutionReports(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Dispatch an execution to the engine
//	topic := mqtt.Topics{}.ExecutionDispatch()
//	client.Publish(topic, payload, 1, false)
package mqtt
