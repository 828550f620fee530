// Package config loads tickstream settings from a YAML or JSON file and the
// environment.
//
// A document has two sections:
//
//	publisher:
//	  maxPacketSize: 32767
//	  compressionMode: tssc
//	  payloadCompression: zstd
//	  bufferBlockRetransmissionTimeout: 5s
//	logging:
//	  level: info
//	  format: text
//
// Missing keys keep their defaults, unknown keys are rejected, and TICKSTREAM_*
// environment variables override the file.
package config
