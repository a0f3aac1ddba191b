// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package settings

import (
	"strconv"

	"github.com/cockroachdb/errors"
)

// Setting is the interface implemented by every registered setting.
type Setting interface {
	// Key is the dotted name of the setting.
	Key() string
	// Typ returns the short (1 char) string denoting the type of setting.
	Typ() string
	// EncodedDefault returns the default value, encoded as a string.
	EncodedDefault() string
	// decode parses and validates an encoded value.
	decode(encoded string) (interface{}, error)
}

type common struct {
	key string
}

// Key implements the Setting interface.
func (c *common) Key() string { return c.key }

// IntSetting is the interface of a setting variable that will be
// updated automatically when the corresponding cluster-wide setting
// of type "int" is updated.
type IntSetting struct {
	common
	defaultValue int64
	validateFn   func(int64) error
}

var _ Setting = &IntSetting{}

// Typ implements the Setting interface.
func (*IntSetting) Typ() string { return "i" }

// EncodedDefault implements the Setting interface.
func (i *IntSetting) EncodedDefault() string {
	return strconv.FormatInt(i.defaultValue, 10)
}

func (i *IntSetting) decode(encoded string) (interface{}, error) {
	v, err := strconv.ParseInt(encoded, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "setting %s", i.key)
	}
	if i.validateFn != nil {
		if err := i.validateFn(v); err != nil {
			return nil, errors.Wrapf(err, "setting %s", i.key)
		}
	}
	return v, nil
}

// Get retrieves the int value in the setting.
func (i *IntSetting) Get(sv *Values) int64 {
	if v, ok := sv.get(i.key); ok {
		return v.(int64)
	}
	return i.defaultValue
}

// Default returns the default value.
func (i *IntSetting) Default() int64 { return i.defaultValue }

// FloatSetting is the interface of a setting variable of type "float".
type FloatSetting struct {
	common
	defaultValue float64
	validateFn   func(float64) error
}

var _ Setting = &FloatSetting{}

// Typ implements the Setting interface.
func (*FloatSetting) Typ() string { return "f" }

// EncodedDefault implements the Setting interface.
func (f *FloatSetting) EncodedDefault() string {
	return strconv.FormatFloat(f.defaultValue, 'g', -1, 64)
}

func (f *FloatSetting) decode(encoded string) (interface{}, error) {
	v, err := strconv.ParseFloat(encoded, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "setting %s", f.key)
	}
	if f.validateFn != nil {
		if err := f.validateFn(v); err != nil {
			return nil, errors.Wrapf(err, "setting %s", f.key)
		}
	}
	return v, nil
}

// Get retrieves the float value in the setting.
func (f *FloatSetting) Get(sv *Values) float64 {
	if v, ok := sv.get(f.key); ok {
		return v.(float64)
	}
	return f.defaultValue
}

// Default returns the default value.
func (f *FloatSetting) Default() float64 { return f.defaultValue }

// BoolSetting is the interface of a setting variable of type "bool".
type BoolSetting struct {
	common
	defaultValue bool
}

var _ Setting = &BoolSetting{}

// Typ implements the Setting interface.
func (*BoolSetting) Typ() string { return "b" }

// EncodedDefault implements the Setting interface.
func (b *BoolSetting) EncodedDefault() string {
	return strconv.FormatBool(b.defaultValue)
}

func (b *BoolSetting) decode(encoded string) (interface{}, error) {
	v, err := strconv.ParseBool(encoded)
	if err != nil {
		return nil, errors.Wrapf(err, "setting %s", b.key)
	}
	return v, nil
}

// Get retrieves the bool value in the setting.
func (b *BoolSetting) Get(sv *Values) bool {
	if v, ok := sv.get(b.key); ok {
		return v.(bool)
	}
	return b.defaultValue
}

// RegisterIntSetting defines a new setting with type int.
func RegisterIntSetting(
	key, desc string, defaultValue int64, validateFns ...func(int64) error,
) *IntSetting {
	s := &IntSetting{common: common{key: key}, defaultValue: defaultValue}
	if len(validateFns) > 0 {
		s.validateFn = func(v int64) error {
			for _, fn := range validateFns {
				if err := fn(v); err != nil {
					return err
				}
			}
			return nil
		}
		if err := s.validateFn(defaultValue); err != nil {
			panic(errors.Wrapf(err, "invalid default value for %s", key))
		}
	}
	register(key, desc, s)
	return s
}

// RegisterFloatSetting defines a new setting with type float.
func RegisterFloatSetting(
	key, desc string, defaultValue float64, validateFns ...func(float64) error,
) *FloatSetting {
	s := &FloatSetting{common: common{key: key}, defaultValue: defaultValue}
	if len(validateFns) > 0 {
		s.validateFn = func(v float64) error {
			for _, fn := range validateFns {
				if err := fn(v); err != nil {
					return err
				}
			}
			return nil
		}
		if err := s.validateFn(defaultValue); err != nil {
			panic(errors.Wrapf(err, "invalid default value for %s", key))
		}
	}
	register(key, desc, s)
	return s
}

// RegisterBoolSetting defines a new setting with type bool.
func RegisterBoolSetting(key, desc string, defaultValue bool) *BoolSetting {
	s := &BoolSetting{common: common{key: key}, defaultValue: defaultValue}
	register(key, desc, s)
	return s
}

// PositiveInt can be passed to RegisterIntSetting.
func PositiveInt(v int64) error {
	if v < 1 {
		return errors.Errorf("cannot be set to a non-positive value: %d", v)
	}
	return nil
}

// NonNegativeFloat can be passed to RegisterFloatSetting.
func NonNegativeFloat(v float64) error {
	if v < 0 {
		return errors.Errorf("cannot be set to a negative value: %f", v)
	}
	return nil
}

// PositiveFloat can be passed to RegisterFloatSetting.
func PositiveFloat(v float64) error {
	if v <= 0 {
		return errors.Errorf("cannot be set to a non-positive value: %f", v)
	}
	return nil
}
