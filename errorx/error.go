package errorx

import (
	"fmt"
	"reflect"
	"strings"
)

type ArgumentNilError struct {
	Name string
}

func (e *ArgumentNilError) Error() string {
	return fmt.Sprintf("ArgumentNilError: %v", e.Name)
}

func NewArgumentNilError(name string) *ArgumentNilError {
	return &ArgumentNilError{name}
}

type ArgumentError struct {
	Message string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("ArgumentError: %v", e.Message)
}

func NewArgumentError(message string) *ArgumentError {
	return &ArgumentError{message}
}

// CircularDependencyError reports the chain of services being built when
// ServiceType was requested again.
type CircularDependencyError struct {
	ServiceType reflect.Type
	Chain       []reflect.Type
}

func (e *CircularDependencyError) Error() string {
	var sb strings.Builder
	sb.WriteString("CircularDependencyError: a circular dependency was detected for the service of type '")
	sb.WriteString(e.ServiceType.String())
	sb.WriteString("'.")
	if len(e.Chain) > 0 {
		sb.WriteString("\n")
		for _, t := range e.Chain {
			sb.WriteString(t.String())
			sb.WriteString(" -> ")
		}
		sb.WriteString(e.ServiceType.String())
	}
	return sb.String()
}

type FuncSignatureError struct {
	Message string
}

func (e *FuncSignatureError) Error() string {
	return fmt.Sprintf("FuncSignatureError: %v", e.Message)
}

type ServiceNotFound struct {
	ServiceType reflect.Type
}

func (e *ServiceNotFound) Error() string {
	return fmt.Sprintf("ServiceNotFound '%v'", e.ServiceType)
}

type InvalidDescriptor struct {
	ServiceType reflect.Type
	Reason      string
}

func (e *InvalidDescriptor) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("InvalidDescriptor '%v'", e.ServiceType)
	}
	return fmt.Sprintf("InvalidDescriptor '%v': %s", e.ServiceType, e.Reason)
}

// OpenGenericMismatchError is returned when an open generic registration does not pair
// two generic definitions of the same arity.
type OpenGenericMismatchError struct {
	Service        string
	Implementation string
	Reason         string
}

func (e *OpenGenericMismatchError) Error() string {
	return fmt.Sprintf("OpenGenericMismatchError: open generic service '%v' cannot be implemented by '%v': %v",
		e.Service, e.Implementation, e.Reason)
}

type TypeCannotBeActivatedError struct {
	ServiceType        reflect.Type
	ImplementationType string
}

func (e *TypeCannotBeActivatedError) Error() string {
	return fmt.Sprintf("TypeCannotBeActivatedError: cannot instantiate implementation type '%v' for service type '%v'",
		e.ImplementationType, e.ServiceType)
}

type NoConstructorMatchError struct {
	ImplementationType reflect.Type
}

func (e *NoConstructorMatchError) Error() string {
	return fmt.Sprintf("NoConstructorMatchError: no constructor for type '%v' can be located", e.ImplementationType)
}

type CannotResolveServiceError struct {
	ParameterType      reflect.Type
	ParameterIndex     int
	ImplementationType reflect.Type
}

func (e *CannotResolveServiceError) Error() string {
	return fmt.Sprintf("CannotResolveServiceError: unable to resolve service for type '%v' (parameter %d) while attempting to activate '%v'",
		e.ParameterType, e.ParameterIndex, e.ImplementationType)
}

type AmbiguousConstructorError struct {
	ImplementationType reflect.Type
	Best               string
	Other              string
}

func (e *AmbiguousConstructorError) Error() string {
	return fmt.Sprintf("AmbiguousConstructorError: unable to activate type '%v'. The following constructors are ambiguous:\n%v\n%v",
		e.ImplementationType, e.Best, e.Other)
}

type UnableToActivateError struct {
	ImplementationType reflect.Type
}

func (e *UnableToActivateError) Error() string {
	return fmt.Sprintf("UnableToActivateError: no constructor for type '%v' can be instantiated using services from the container",
		e.ImplementationType)
}

type TypeIncompatibilityError struct {
	To   reflect.Type
	From reflect.Type
}

func (e *TypeIncompatibilityError) Error() string {
	return fmt.Sprintf("the value of type '%v' can not assignable to type '%v'", e.From, e.To)
}

type ObjectDisposedError struct {
	Message string
}

func (e *ObjectDisposedError) Error() string {
	return fmt.Sprintf("ObjectDisposedError: %v", e.Message)
}

type ScopedServiceFromRootError struct {
	Message string
}

func (e *ScopedServiceFromRootError) Error() string {
	return fmt.Sprintf("ScopedServiceFromRootError: %v", e.Message)
}

type InsufficientStackError struct {
	Depth int
}

func (e *InsufficientStackError) Error() string {
	return fmt.Sprintf("InsufficientStackError: recursion exceeded %d frames", e.Depth)
}

type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Add(err error) {
	e.Errors = append(e.Errors, err)
}

func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

func (e *AggregateError) Error() string {
	var b strings.Builder
	b.WriteString("AggregateError: \n")
	for _, e := range e.Errors {
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return b.String()
}
