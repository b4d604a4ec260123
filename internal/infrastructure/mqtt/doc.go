// Package mqtt provides the broker connection used by the MQTT bridge and
// the MQTT-backed hardware I/O.
//
// It wraps paho.mqtt.golang with:
//   - auto-reconnect and subscription restore
//   - a retained online/offline status with Last Will
//   - startup connect retry with exponential backoff
//   - input validation and handler panic recovery
//
// Topic layout (see Topics):
//
//	cardcore/io/di/{ch}          field digital input level (in)
//	cardcore/io/ai/{ch}          field analog input value (in)
//	cardcore/io/do/{ch}          digital output level (out, retained)
//	cardcore/snapshot            full snapshot (out, retained)
//	cardcore/card/{id}/state     per-card signals (out, retained)
//	cardcore/command             JSON command (in)
//	cardcore/command/ack         command acknowledgement (out)
//	cardcore/system/status       online/offline (out, retained, LWT)
//
// Usage:
//
//	client, err := mqtt.ConnectWithRetry(ctx, cfg.MQTT, logger)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
package mqtt
