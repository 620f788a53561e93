// Package envconf fills a struct from environment variables.
//
// Fields are bound with `env:"NAME"`. A field without an `envDefault` tag is
// required; with one, the default is parsed exactly like an environment value
// would be. Untagged struct fields (and pointers to structs) are walked
// recursively. Slices are read as comma-separated lists.
package envconf

import (
	"encoding"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingRequired = errors.New("missing required environment variable")
	ErrUnsupportedType = errors.New("unsupported field type")
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load populates dst, which must be a non-nil pointer to a struct.
func Load(dst any) error {
	if dst == nil {
		return errors.New("destination is nil")
	}

	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return errors.New("destination must be a non-nil pointer to a struct")
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return errors.New("destination must point to a struct")
	}

	return loadStruct(v)
}

func loadStruct(v reflect.Value) error {
	t := v.Type()
	for i := range v.NumField() {
		sf := t.Field(i)
		fv := v.Field(i)

		if !sf.IsExported() {
			continue
		}

		name := sf.Tag.Get("env")
		if name == "-" {
			continue
		}

		if name == "" {
			err := loadNested(fv)
			if err != nil {
				return fmt.Errorf("load recursively %q: %w", sf.Name, err)
			}

			continue
		}

		raw, err := lookup(name, sf)
		if err != nil {
			return err
		}

		err = setValue(fv, raw)
		if err != nil {
			return fmt.Errorf("parse %q for field %q: %w", name, sf.Name, err)
		}
	}

	return nil
}

// loadNested descends into struct and pointer-to-struct fields; any other
// untagged field is left alone.
func loadNested(fv reflect.Value) error {
	switch {
	case fv.Kind() == reflect.Struct && fv.Type() != durationType:
		return loadStruct(fv)
	case fv.Kind() == reflect.Pointer && fv.Type().Elem().Kind() == reflect.Struct:
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}

		return loadStruct(fv.Elem())
	default:
		return nil
	}
}

func lookup(name string, sf reflect.StructField) (string, error) {
	raw, ok := os.LookupEnv(name)
	if ok {
		return raw, nil
	}

	def, ok := sf.Tag.Lookup("envDefault")
	if ok {
		return def, nil
	}

	return "", fmt.Errorf("%w: %s (field %q)", ErrMissingRequired, name, sf.Name)
}

//nolint:gocognit,cyclop
func setValue(fv reflect.Value, raw string) error {
	if !fv.CanSet() {
		return fmt.Errorf("field not settable: %w", ErrUnsupportedType)
	}

	if fv.CanAddr() {
		u, ok := fv.Addr().Interface().(encoding.TextUnmarshaler)
		if ok {
			err := u.UnmarshalText([]byte(raw))
			if err != nil {
				return fmt.Errorf("unmarshal text: %w", err)
			}

			return nil
		}
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)

		return nil
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("parse bool: %w", err)
		}

		fv.SetBool(b)

		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if fv.Type() == durationType {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return fmt.Errorf("parse duration: %w", err)
			}

			fv.SetInt(int64(d))

			return nil
		}

		i, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
		if err != nil {
			return fmt.Errorf("parse int: %w", err)
		}

		fv.SetInt(i)

		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(raw, 10, fv.Type().Bits())
		if err != nil {
			return fmt.Errorf("parse uint: %w", err)
		}

		fv.SetUint(u)

		return nil
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, fv.Type().Bits())
		if err != nil {
			return fmt.Errorf("parse float: %w", err)
		}

		fv.SetFloat(f)

		return nil
	case reflect.Slice:
		return setSlice(fv, raw)
	case reflect.Pointer:
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}

		err := setValue(fv.Elem(), raw)
		if err != nil {
			return fmt.Errorf("parse pointer: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("unsupported type %s: %w", fv.Type(), ErrUnsupportedType)
	}
}

// setSlice splits raw on commas; blank items are dropped, so an empty value
// yields an empty slice.
func setSlice(fv reflect.Value, raw string) error {
	parts := strings.Split(raw, ",")
	out := reflect.MakeSlice(fv.Type(), 0, len(parts))

	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		elem := reflect.New(fv.Type().Elem()).Elem()

		err := setValue(elem, p)
		if err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}

		out = reflect.Append(out, elem)
	}

	fv.Set(out)

	return nil
}
