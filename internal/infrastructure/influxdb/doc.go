// Package influxdb writes controller telemetry to InfluxDB v2.
//
// Two measurements are written through the non-blocking batching API:
//
//	scan_metrics  tags: site            fields: pass and overrun counters, pass
//	                                            timing, queue and command stats
//	card_values   tags: site, card, family  fields: logical, physical, trigger,
//	                                            value, state
//
// Writes are dropped silently while disconnected; asynchronous write errors
// are reported through SetOnError.
package influxdb
