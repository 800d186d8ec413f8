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

package transport

import (
	"errors"
	"fmt"
)

// Code classifies transport-level failures. Rendered error strings carry
// the code negated in brackets, matching the numeric convention of other
// implementations of this protocol family.
type Code int

const (
	CodeInvalidParam       Code = 1
	CodeDriver             Code = 2
	CodeUnknownDataType    Code = 3
	CodeInvalidMarshalData Code = 4
	CodeNotInited          Code = 5
	CodePassiveMode        Code = 6
	CodeBusy               Code = 7
	CodeLogic              Code = 8
	CodeTimeout            Code = 9
)

func (c Code) String() string {
	switch c {
	case CodeInvalidParam:
		return "invalid parameter"
	case CodeDriver:
		return "driver failure"
	case CodeUnknownDataType:
		return "unknown data type"
	case CodeInvalidMarshalData:
		return "invalid marshal data"
	case CodeNotInited:
		return "not initialized"
	case CodePassiveMode:
		return "passive mode"
	case CodeBusy:
		return "busy"
	case CodeLogic:
		return "logic error"
	case CodeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is a transport failure with a numeric classification
type Error struct {
	code Code
	msg  string
	err  error
}

// NewError returns an Error with the given code and message
func NewError(code Code, msg string) *Error {
	return &Error{code: code, msg: msg}
}

// Errorf returns an Error with a formatted message
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{code: code, msg: fmt.Sprintf(format, args...)}
}

// WrapError returns an Error wrapping an underlying cause
func WrapError(code Code, msg string, err error) *Error {
	return &Error{code: code, msg: msg, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s [-%d]: %s", e.msg, e.code, e.err)
	}
	return fmt.Sprintf("%s [-%d]", e.msg, e.code)
}

// Code returns the numeric classification
func (e *Error) Code() Code {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// CodeOf extracts the classification from an error chain, returning zero
// when the chain carries no transport Error
func CodeOf(err error) Code {
	var te *Error
	if errors.As(err, &te) {
		return te.code
	}
	return 0
}
