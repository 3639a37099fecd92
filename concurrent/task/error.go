/**
 * Copyright (c) 2019, The Selene Authors.
 *
 * Permission to use, copy, modify, and/or distribute this software for any
 * purpose with or without fee is hereby granted, provided that the above
 * copyright notice and this permission notice appear in all copies.
 *
 * THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES
 * WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF
 * MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR
 * ANY SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES
 * WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN
 * ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF
 * OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
 */

package task

import (
	"fmt"
	"log"
	"runtime"
	"strings"
	"unsafe"

	"github.com/json-iterator/go"
)

// Domain identifies the subsystem an error originates from.
type Domain string

// ErrorDomain is the domain set on errors created by this package.
const ErrorDomain Domain = "selene.task"

// Code classifies an error within a domain.
type Code int

// Enumeration of Code values used by this package
const (
	// CodeUnknown is the zero Code. It is not printed in the error message.
	CodeUnknown Code = iota

	// CodeMultipleErrors is set on the aggregate error built by WhenAll and
	// WhenAllResults when more than one input task faults.
	CodeMultipleErrors

	// CodePanic is set on errors converted from a panic raised inside a block.
	CodePanic
)

// ErrorExtensions attaches structured metadata to an Error. It is useful for
// carrying vendor-specific error data alongside the message.
type ErrorExtensions map[string]interface{}

// extensionsErrorsKey is the Extensions key under which an aggregate error
// stores its underlying errors.
const extensionsErrorsKey = "errors"

// An Error is the structured error payload carried by a faulted Task. Zero or
// more fields beyond Message may be set; an Error can also wrap an underlying
// error value.
type Error struct {
	// Message describes the error for debugging purposes.
	Message string

	// Domain identifies the origin of the error.
	Domain Domain

	// Code classifies the error within its Domain.
	Code Code

	// Extensions contains structured metadata attached to the error.
	Extensions ErrorExtensions

	// Err is the underlying error that triggered this one, if any.
	Err error
}

// Error implements Go error interface.
var _ error = (*Error)(nil)

// NewError builds an error value from arguments. Each argument is matched by
// type: a Domain, a Code and an ErrorExtensions set the corresponding field,
// and an error value becomes the underlying error. When the underlying error
// is itself an *Error, its Code and Extensions are propagated to the new error
// unless overridden by an argument.
func NewError(message string, args ...interface{}) error {
	e := &Error{
		Message: message,
		Domain:  ErrorDomain,
	}

	for _, arg := range args {
		switch arg := arg.(type) {
		case Domain:
			e.Domain = arg
		case Code:
			e.Code = arg
		case ErrorExtensions:
			e.Extensions = arg
		case error:
			e.Err = arg
		default:
			_, file, line, _ := runtime.Caller(1)
			log.Printf("NewError: bad call from %s:%d: %v", file, line, args)
			return fmt.Errorf("unknown type %T, value %v in error call", arg, arg)
		}
	}

	if prev, ok := e.Err.(*Error); ok {
		if e.Code == CodeUnknown {
			e.Code = prev.Code
		}
		if e.Extensions == nil {
			e.Extensions = prev.Extensions
		}
	}

	return e
}

// NewAggregateError bundles multiple underlying errors into one Error with
// CodeMultipleErrors. The order of errs is preserved and can be read back with
// AggregateErrors.
func NewAggregateError(errs []error) error {
	return NewError("there were multiple errors", CodeMultipleErrors, ErrorExtensions{
		extensionsErrorsKey: errs,
	})
}

// AggregateErrors returns the ordered underlying errors carried by an
// aggregate error, or nil if err is not one.
func AggregateErrors(err error) []error {
	e, ok := err.(*Error)
	if !ok || e.Code != CodeMultipleErrors {
		return nil
	}
	errs, _ := e.Extensions[extensionsErrorsKey].([]error)
	return errs
}

// newPanicError converts a value recovered from a panicking block into an
// error with CodePanic.
func newPanicError(value interface{}) error {
	if err, ok := value.(error); ok {
		return NewError("block panicked", CodePanic, err)
	}
	return NewError(fmt.Sprintf("block panicked: %v", value), CodePanic)
}

// Error implements Go's error interface.
func (e *Error) Error() string {
	var b strings.Builder

	if len(e.Domain) > 0 {
		b.WriteString(string(e.Domain))
	}

	if len(e.Message) > 0 {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Message)
	}

	if errs := AggregateErrors(e); len(errs) > 0 {
		b.WriteString(" [")
		for i, err := range errs {
			if i > 0 {
				b.WriteString("; ")
			}
			b.WriteString(err.Error())
		}
		b.WriteByte(']')
	} else if e.Err != nil {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}

	if b.Len() == 0 {
		return "no error"
	}
	return b.String()
}

// MarshalJSON serializes the error to JSON.
func (e *Error) MarshalJSON() ([]byte, error) {
	return jsoniter.Marshal(e)
}

// errorMarshaller implements jsoniter.ValEncoder to encode an Error to JSON.
type errorMarshaller struct{}

var _ jsoniter.ValEncoder = errorMarshaller{}

// IsEmpty implements jsoniter.ValEncoder.
func (errorMarshaller) IsEmpty(ptr unsafe.Pointer) bool {
	e := (*Error)(ptr)
	return len(e.Message) == 0 && e.Err == nil
}

// Encode implements jsoniter.ValEncoder.
func (errorMarshaller) Encode(ptr unsafe.Pointer, stream *jsoniter.Stream) {
	e := (*Error)(ptr)

	stream.WriteObjectStart()

	stream.WriteObjectField("domain")
	stream.WriteString(string(e.Domain))

	if e.Code != CodeUnknown {
		stream.WriteMore()
		stream.WriteObjectField("code")
		stream.WriteInt(int(e.Code))
	}

	stream.WriteMore()
	stream.WriteObjectField("message")
	stream.WriteString(e.Message)

	if errs := AggregateErrors(e); len(errs) > 0 {
		stream.WriteMore()
		stream.WriteObjectField("errors")
		stream.WriteArrayStart()
		for i, err := range errs {
			if i > 0 {
				stream.WriteMore()
			}
			stream.WriteString(err.Error())
		}
		stream.WriteArrayEnd()
	} else if e.Err != nil {
		stream.WriteMore()
		stream.WriteObjectField("cause")
		stream.WriteString(e.Err.Error())
	}

	stream.WriteObjectEnd()
}

func init() {
	jsoniter.RegisterTypeEncoder("task.Error", errorMarshaller{})
}
