// Package mqtt provides the broker connection used by the Insteon service.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and payload-size checks
//   - Subscriptions that survive reconnects
//   - A retained per-service status topic with an offline Last Will
//
// # Topics
//
// Bridge topics follow graylogic/{category}/{protocol}/{id}. The service
// itself announces online/offline on graylogic/system/status/{client_id}.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.BridgeWildcard(mqtt.CategoryCommand, "insteon"), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("command: %s = %s", topic, payload)
//	        return nil
//	    })
//
// # Security Considerations
//
//   - Enable TLS (mqtt.broker.tls) outside a trusted LAN
//   - Pass the password through GRAYLOGIC_MQTT_PASSWORD, not the YAML file
package mqtt
