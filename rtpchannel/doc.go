// Package rtpchannel owns one bidirectional RTP media stream: local/remote
// addressing, the attached codec, marker-bit reassembly, tempification,
// the lock-via-data-frame protocol, and the DTMF FIFO. See spec §4.3.
package rtpchannel
