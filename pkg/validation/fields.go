package validation

import (
	"reflect"
	"strconv"
	"strings"
)

// Field describes one input of a form for rendering.
type Field struct {
	Name     string
	Label    string
	Kind     string // checkbox, number, text, select or choice
	Value    string
	Checked  bool
	Options  []Option
	Choices  []string
	Required bool
	MaxLen   int
	Error    string
}

func (f Field) Selected(o Option) bool {
	return f.Value == strconv.Itoa(int(o.Value))
}

// Fields lists the inputs of a form struct in declaration order, with the
// current values and any error from errs attached.
func Fields(form any, errs FieldErrors) []Field {
	v := reflect.Indirect(reflect.ValueOf(form))
	t := v.Type()
	fields := make([]Field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name, _, _ := strings.Cut(sf.Tag.Get("schema"), ",")
		if name == "" || name == "-" {
			continue
		}
		f := Field{
			Name:  name,
			Label: label(strings.ToUpper(name)),
			Error: errs[name],
		}
		applyRules(&f, sf.Tag.Get("validate"))

		fv := v.Field(i)
		switch fv.Kind() {
		case reflect.Bool:
			f.Kind = "checkbox"
			f.Checked = fv.Bool()
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			f.Value = strconv.FormatInt(fv.Int(), 10)
			if f.Kind == "" {
				f.Kind = "number"
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			f.Value = strconv.FormatUint(fv.Uint(), 10)
			f.Kind = "number"
		case reflect.Float32, reflect.Float64:
			f.Value = strconv.FormatFloat(fv.Float(), 'f', -1, 64)
			f.Kind = "number"
		default:
			f.Value = fv.String()
			if f.Kind == "" {
				f.Kind = "text"
			}
		}
		fields = append(fields, f)
	}
	return fields
}

func applyRules(f *Field, rules string) {
	for _, rule := range strings.Split(rules, ",") {
		key, param, _ := strings.Cut(rule, "=")
		switch key {
		case "required":
			f.Required = true
		case "max":
			f.MaxLen, _ = strconv.Atoi(param)
		case "enum":
			f.Kind = "select"
			f.Options = Options(param)
		case "oneof":
			f.Kind = "choice"
			f.Choices = strings.Fields(param)
		}
	}
}
