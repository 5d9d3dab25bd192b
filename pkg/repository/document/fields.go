package document

import (
	"reflect"
	"strings"
	"time"

	"github.com/nimburion/repokit/pkg/query"
)

var timeType = reflect.TypeOf(time.Time{})

type docField struct {
	key  string
	kind reflect.Kind
}

// docFields maps Go field paths and BSON key paths to BSON key paths, the way
// the driver's default struct codec names them. A struct with an inline map
// is open: names it does not declare are used as keys verbatim.
type docFields struct {
	exact map[string]docField
	fold  map[string]docField
	open  bool
}

func describe(t reflect.Type) docFields {
	f := docFields{exact: map[string]docField{}, fold: map[string]docField{}}
	f.walk(t, "", "", map[reflect.Type]bool{})
	return f
}

func (f *docFields) walk(t reflect.Type, goPrefix, keyPrefix string, visiting map[reflect.Type]bool) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || visiting[t] {
		return
	}
	visiting[t] = true
	defer delete(visiting, t)

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() && !sf.Anonymous {
			continue
		}
		key, inline, skip := parseBSONTag(sf)
		if skip {
			continue
		}
		ft := sf.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if inline {
			if ft.Kind() == reflect.Map && goPrefix == "" {
				f.open = true
				continue
			}
			f.walk(ft, goPrefix, keyPrefix, visiting)
			continue
		}

		goPath, keyPath := goPrefix+sf.Name, keyPrefix+key
		f.add(goPath, keyPath, ft.Kind())
		if ft.Kind() == reflect.Struct && ft != timeType {
			f.walk(ft, goPath+".", keyPath+".", visiting)
		}
	}
}

func (f *docFields) add(goPath, keyPath string, kind reflect.Kind) {
	field := docField{key: keyPath, kind: kind}
	for _, name := range []string{keyPath, goPath} {
		if _, taken := f.exact[name]; !taken {
			f.exact[name] = field
		}
		folded := strings.ToLower(name)
		if _, taken := f.fold[folded]; !taken {
			f.fold[folded] = field
		}
	}
}

func parseBSONTag(sf reflect.StructField) (key string, inline, skip bool) {
	key = strings.ToLower(sf.Name)
	tag, ok := sf.Tag.Lookup("bson")
	if !ok {
		return key, false, false
	}
	if tag == "-" {
		return "", false, true
	}
	for i, part := range strings.Split(tag, ",") {
		if i == 0 && part != "" {
			key = part
		}
		if part == "inline" {
			inline = true
		}
	}
	return key, inline, false
}

func (f docFields) field(name string) (docField, error) {
	if field, ok := f.exact[name]; ok {
		return field, nil
	}
	if field, ok := f.fold[strings.ToLower(name)]; ok {
		return field, nil
	}
	if f.open && query.ValidateField(name) == nil {
		return docField{key: name, kind: reflect.Interface}, nil
	}
	return docField{}, query.UnknownField(name)
}

// Resolve returns the BSON key path of name.
func (f docFields) Resolve(name string) (string, error) {
	field, err := f.field(name)
	if err != nil {
		return "", err
	}
	return field.key, nil
}
