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

// Package dsdl describes the data types exchanged over the bus: their
// identity (kind, numeric id, full name, signature) and their wire
// encoding. The signature seeds the transfer CRC, so two nodes disagreeing
// on a type revision reject each other's multi-frame transfers instead of
// decoding garbage.
package dsdl

import (
	"fmt"
)

// Kind distinguishes broadcast message types from service types
type Kind uint8

const (
	KindMessage Kind = iota
	KindService
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindService:
		return "service"
	default:
		return "unknown"
	}
}

const (
	// MaxMessageTypeID is the largest message data type id (16 bits)
	MaxMessageTypeID = 0xFFFF

	// MaxServiceTypeID is the largest service data type id (8 bits)
	MaxServiceTypeID = 0xFF

	// MaxFullNameLength bounds a full type name like
	// "uavcan.protocol.NodeStatus"
	MaxFullNameLength = 80
)

// Type identifies one data type. The zero value is invalid; construct
// types with NewMessageType or NewServiceType.
type Type struct {
	kind      Kind
	id        uint16
	name      string
	signature uint64
}

// NewMessageType describes a broadcast message type. The signature is
// derived from the full name; interoperating with types whose signature
// is defined externally requires WithSignature.
func NewMessageType(id uint16, name string) (Type, error) {
	if err := validateName(name); err != nil {
		return Type{}, err
	}
	return Type{
		kind:      KindMessage,
		id:        id,
		name:      name,
		signature: Signature(name),
	}, nil
}

// NewServiceType describes a service type
func NewServiceType(id uint16, name string) (Type, error) {
	if id > MaxServiceTypeID {
		return Type{}, fmt.Errorf("dsdl: service type id %d exceeds %d", id, MaxServiceTypeID)
	}
	if err := validateName(name); err != nil {
		return Type{}, err
	}
	return Type{
		kind:      KindService,
		id:        id,
		name:      name,
		signature: Signature(name),
	}, nil
}

// MustMessageType is NewMessageType for statically known definitions,
// panicking on invalid input
func MustMessageType(id uint16, name string) Type {
	t, err := NewMessageType(id, name)
	if err != nil {
		panic(err)
	}
	return t
}

// MustServiceType is NewServiceType for statically known definitions,
// panicking on invalid input
func MustServiceType(id uint16, name string) Type {
	t, err := NewServiceType(id, name)
	if err != nil {
		panic(err)
	}
	return t
}

// WithSignature returns a copy of the type carrying an externally defined
// signature instead of the name-derived one
func (t Type) WithSignature(signature uint64) Type {
	t.signature = signature
	return t
}

// Kind returns the type kind
func (t Type) Kind() Kind {
	return t.kind
}

// ID returns the numeric data type id
func (t Type) ID() uint16 {
	return t.id
}

// Name returns the full type name
func (t Type) Name() string {
	return t.name
}

// Signature returns the data type signature seeding the transfer CRC
func (t Type) Signature() uint64 {
	return t.signature
}

// Valid reports whether the type was properly constructed
func (t Type) Valid() error {
	if t.name == "" {
		return fmt.Errorf("dsdl: zero type descriptor")
	}
	return nil
}

func (t Type) String() string {
	return fmt.Sprintf("%s(%d)", t.name, t.id)
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("dsdl: empty type name")
	}
	if len(name) > MaxFullNameLength {
		return fmt.Errorf("dsdl: type name %q exceeds %d characters", name, MaxFullNameLength)
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9', r == '.', r == '_':
			if i == 0 {
				return fmt.Errorf("dsdl: type name %q must start with a letter", name)
			}
		default:
			return fmt.Errorf("dsdl: invalid character %q in type name %q", r, name)
		}
	}
	return nil
}
