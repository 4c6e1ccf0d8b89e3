/*
 * This file is part of Audio Transcripter (https://github.com/akshaymugale01/audio-transcripter).
 * Copyright (C) 2025 Akshay Mugale
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package audio

import (
	"encoding/binary"
	"math"
)

// TargetSampleRate is the fixed output rate expected by the remote ASR socket
const TargetSampleRate = 16000

// Resample converts samples at sourceRate to targetRate using nearest-neighbor
// index selection. Output length is round(len(samples) * targetRate / sourceRate).
// This is a deliberate low-cost approximation, not bandlimited interpolation;
// aliasing above Nyquist is accepted. Equal rates pass the input through
// unchanged.
func Resample(samples []float32, sourceRate, targetRate int) []float32 {
	if sourceRate == targetRate {
		return samples
	}

	ratio := float64(sourceRate) / float64(targetRate)
	outLen := int(math.Round(float64(len(samples)) * float64(targetRate) / float64(sourceRate)))
	out := make([]float32, outLen)

	for i := 0; i < outLen; i++ {
		srcIndex := int(math.Round(float64(i) * ratio))
		if srcIndex > len(samples)-1 {
			srcIndex = len(samples) - 1
		}
		out[i] = samples[srcIndex]
	}

	return out
}

// EncodePCM converts floating-point samples in [-1.0, 1.0] to 16-bit signed
// PCM: clamp(round(s * 32768), -32768, 32767). Values outside the nominal
// range saturate rather than wrap.
func EncodePCM(samples []float32) []int16 {
	pcm := make([]int16, len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * 32768)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		pcm[i] = int16(v)
	}
	return pcm
}

// PCMBytes renders PCM samples as little-endian wire bytes, the exact binary
// message body the ASR socket expects (mono, no framing prefix).
func PCMBytes(pcm []int16) []byte {
	buf := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
