package config

import (
	"fmt"
	"reflect"
	"strings"
)

// Validate checks if the configuration is valid. It applies the same rules
// as the loader, for configurations assembled in code.
func (c *Config) Validate() error {
	return (&ViperLoader{}).Validate(c)
}

// String returns the full configuration as a formatted string
func (c *Config) String() string {
	return formatStruct(reflect.ValueOf(c).Elem(), reflect.Value{}, "")
}

// Redacted returns the configuration with secrets masked.
// Pass the secrets Config returned by LoadWithSecrets() to mask those values.
// The database URL is always masked since it usually carries credentials.
func (c *Config) Redacted(secrets *Config) string {
	mask := Config{}
	if secrets != nil {
		mask = *secrets
	}
	if c.Database.URL != "" {
		mask.Database.URL = "set"
	}
	return formatStruct(reflect.ValueOf(c).Elem(), reflect.ValueOf(&mask).Elem(), "")
}

// formatStruct renders v as indented key: value lines. Leaves whose
// counterpart in mask is non-zero print as ***. An invalid mask masks nothing.
func formatStruct(v, mask reflect.Value, prefix string) string {
	var sb strings.Builder
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		value := v.Field(i)
		if !value.CanInterface() {
			continue
		}
		var maskValue reflect.Value
		if mask.IsValid() {
			maskValue = mask.Field(i)
		}

		fieldName := field.Name
		if tag := field.Tag.Get("mapstructure"); tag != "" && tag != "-" {
			fieldName = tag
		}

		switch value.Kind() {
		case reflect.Struct:
			sb.WriteString(fmt.Sprintf("%s%s:\n", prefix, fieldName))
			sb.WriteString(formatStruct(value, maskValue, prefix+"  "))
		default:
			var display any = value.Interface()
			if shouldRedact(maskValue) {
				display = "***"
			}
			sb.WriteString(fmt.Sprintf("%s%s: %v\n", prefix, fieldName, display))
		}
	}

	return sb.String()
}

func shouldRedact(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}

	switch v.Kind() {
	case reflect.String:
		return v.String() != ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return v.Float() != 0
	case reflect.Bool:
		return v.Bool()
	default:
		return false
	}
}
