// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package thixx

import "fmt"

// MaxPayloadSize is the largest encoded payload, in bytes, written to a tag.
const MaxPayloadSize = 880

// ByteLength returns the UTF-8 encoded size of payload.
func ByteLength(payload string) int {
	return len(payload)
}

// ExceedsLimit reports whether payload is larger than limit bytes.
func ExceedsLimit(payload string, limit int) bool {
	return ByteLength(payload) > limit
}

// CheckPayload rejects a payload larger than limit with a KindPayloadTooLarge
// error. It never touches hardware and is meant to run before a write.
func CheckPayload(payload string, limit int) error {
	if n := ByteLength(payload); n > limit {
		return NewError("check payload", KindPayloadTooLarge,
			fmt.Errorf("%w: %d of %d bytes", ErrPayloadTooLarge, n, limit))
	}
	return nil
}

// PayloadStatus describes an encoded payload against the tag cap.
type PayloadStatus struct {
	Bytes    int
	Limit    int
	Exceeded bool
}

// StatusOf measures payload against limit.
func StatusOf(payload string, limit int) PayloadStatus {
	n := ByteLength(payload)
	return PayloadStatus{Bytes: n, Limit: limit, Exceeded: n > limit}
}

func (s PayloadStatus) String() string {
	return fmt.Sprintf("%d / %d Bytes", s.Bytes, s.Limit)
}
