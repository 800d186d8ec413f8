// Copyright 2026 EgoPingvina
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

package dsdl

import (
	"fmt"
	"sync"

	_cbor "github.com/fxamacker/cbor/v2"
)

// StructAsArray wraps a struct to indicate that it should be encoded as a
// fixed-length array rather than a map. Field order then carries meaning,
// so appending fields is wire-compatible but reordering is not.
type StructAsArray struct {
	_ struct{} `cbor:",toarray"` //nolint:unused
}

var (
	encOnce sync.Once
	encMode _cbor.EncMode
	encErr  error

	decOnce sync.Once
	decMode _cbor.DecMode
	decErr  error
)

func encoder() (_cbor.EncMode, error) {
	encOnce.Do(func() {
		opts := _cbor.EncOptions{
			// Make the encoding deterministic
			Sort: _cbor.SortCoreDeterministic,
		}
		encMode, encErr = opts.EncMode()
	})
	return encMode, encErr
}

func decoder() (_cbor.DecMode, error) {
	decOnce.Do(func() {
		decMode, decErr = _cbor.DecOptions{}.DecMode()
	})
	return decMode, decErr
}

// Marshal encodes a value into its deterministic wire form. Two nodes
// encoding the same value produce identical payload bytes, which keeps
// transfer CRCs comparable across implementations.
func Marshal(v interface{}) ([]byte, error) {
	em, err := encoder()
	if err != nil {
		return nil, fmt.Errorf("dsdl: encoder setup: %w", err)
	}
	data, err := em.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("dsdl: marshal: %w", err)
	}
	return data, nil
}

// Unmarshal decodes wire bytes into the provided destination
func Unmarshal(data []byte, v interface{}) error {
	dm, err := decoder()
	if err != nil {
		return fmt.Errorf("dsdl: decoder setup: %w", err)
	}
	if err := dm.Unmarshal(data, v); err != nil {
		return fmt.Errorf("dsdl: unmarshal: %w", err)
	}
	return nil
}
