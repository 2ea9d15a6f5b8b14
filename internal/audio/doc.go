// Package audio plays an optional chime when a message appears.
// It uses the beep library to play WAV, OGG and MP3 files with volume
// control, and rate limits bursts so a flood of chat does not stack sounds.
package audio
