package stt

import "encoding/binary"

// A canonical PCM WAV header is 44 bytes: RIFF chunk, fmt subchunk,
// data subchunk.
const wavHeaderSize = 44

// WrapPCMAsWAV puts the raw PCM a capture source records into a RIFF
// container. Upload-style transcription APIs reject headerless audio,
// so every Whisper request goes through this first. The PCM bytes are
// expected little-endian signed, matching the capture defaults.
func WrapPCMAsWAV(pcmData []byte, sampleRate, channels, bitsPerSample int) []byte {
	dataSize := len(pcmData)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	wav := make([]byte, wavHeaderSize+dataSize)
	le := binary.LittleEndian

	copy(wav[0:4], "RIFF")
	le.PutUint32(wav[4:8], uint32(wavHeaderSize-8+dataSize))
	copy(wav[8:12], "WAVE")

	copy(wav[12:16], "fmt ")
	le.PutUint32(wav[16:20], 16) // PCM subchunk size
	le.PutUint16(wav[20:22], 1)  // uncompressed PCM
	le.PutUint16(wav[22:24], uint16(channels))
	le.PutUint32(wav[24:28], uint32(sampleRate))
	le.PutUint32(wav[28:32], uint32(byteRate))
	le.PutUint16(wav[32:34], uint16(blockAlign))
	le.PutUint16(wav[34:36], uint16(bitsPerSample))

	copy(wav[36:40], "data")
	le.PutUint32(wav[40:44], uint32(dataSize))
	copy(wav[wavHeaderSize:], pcmData)

	return wav
}
