package db2reader

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
)

// FieldDef names one decoded field slot and how to read it.
type FieldDef struct {
	Index     int
	Name      string
	Type      string
	ArraySize int
}

// TableDef is a caller-supplied JSON table definition mapping field
// indices onto names and scalar types, used to project decoded
// records into named JSON.
type TableDef struct {
	Name   string
	Fields []FieldDef
}

/*
ParseTableDef parses a table definition document of the form

	{"name":"Spell","fields":[
	  {"index":0,"name":"ID","type":"uint32"},
	  {"index":1,"name":"Name","type":"string"},
	  {"index":2,"name":"Reagent","type":"int32","size":8}]}

Supported types: uint8, uint16, uint32, uint64, int32, float, string.
*/
func ParseTableDef(data []byte) (td *TableDef, err error) {
	object := gjson.ParseBytes(data)
	if err = CheckMember(object, `name`); err != nil {
		return nil, err
	}
	if err = CheckMember(object, `fields`); err != nil {
		return nil, err
	}
	td = &TableDef{Name: object.Get(`name`).String()}
	for _, field := range object.Get(`fields`).Array() {
		for _, member := range []string{`index`, `name`, `type`} {
			if err = CheckMember(field, member); err != nil {
				return nil, err
			}
		}
		def := FieldDef{
			Index:     int(field.Get(`index`).Int()),
			Name:      field.Get(`name`).String(),
			Type:      field.Get(`type`).String(),
			ArraySize: int(field.Get(`size`).Int()),
		}
		switch def.Type {
		case `uint8`, `uint16`, `uint32`, `uint64`, `int32`, `float`, `string`:
		default:
			return nil, fmt.Errorf(`field %s has unsupported type %s`, def.Name, def.Type)
		}
		if def.ArraySize < 1 {
			def.ArraySize = 1
		}
		td.Fields = append(td.Fields, def)
	}
	if len(td.Fields) == 0 {
		return nil, fmt.Errorf(`table %s defines no fields`, td.Name)
	}
	return td, nil
}

// Project renders one record as a JSON object keyed by the defined
// field names. Array-sized fields render as JSON arrays.
func (td *TableDef) Project(view *RecordView) (result []byte, err error) {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf(`{"id":%d`, view.GetID()))
	for i := range td.Fields {
		def := &td.Fields[i]
		buf.WriteString(`,`)
		buf.WriteString(strconv.Quote(def.Name))
		buf.WriteString(`:`)
		if def.ArraySize > 1 {
			buf.WriteString(`[`)
			for k := 0; k < def.ArraySize; k++ {
				if k > 0 {
					buf.WriteString(`,`)
				}
				if err = td.appendValue(&buf, view, def, k); err != nil {
					return nil, err
				}
			}
			buf.WriteString(`]`)
			continue
		}
		if err = td.appendValue(&buf, view, def, 0); err != nil {
			return nil, err
		}
	}
	buf.WriteString(`}`)
	return buf.Bytes(), nil
}

func (td *TableDef) appendValue(buf *bytes.Buffer, view *RecordView, def *FieldDef, arrayIndex int) (err error) {
	switch def.Type {
	case `uint8`:
		v, e := view.GetUint8(def.Index, arrayIndex)
		err = e
		buf.WriteString(strconv.FormatUint(uint64(v), 10))
	case `uint16`:
		v, e := view.GetUint16(def.Index, arrayIndex)
		err = e
		buf.WriteString(strconv.FormatUint(uint64(v), 10))
	case `uint32`:
		v, e := view.GetUint32(def.Index, arrayIndex)
		err = e
		buf.WriteString(strconv.FormatUint(uint64(v), 10))
	case `uint64`:
		v, e := view.GetUint64(def.Index, arrayIndex)
		err = e
		buf.WriteString(strconv.FormatUint(v, 10))
	case `int32`:
		v, e := view.GetInt32(def.Index, arrayIndex)
		err = e
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case `float`:
		v, e := view.GetFloat32(def.Index, arrayIndex)
		err = e
		buf.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	case `string`:
		v, e := view.GetString(def.Index, arrayIndex)
		err = e
		buf.WriteString(strconv.Quote(v))
	default:
		return fmt.Errorf(`field %s has unsupported type %s`, def.Name, def.Type)
	}
	if err != nil {
		return fmt.Errorf(`project field %s: %w`, def.Name, err)
	}
	return nil
}
