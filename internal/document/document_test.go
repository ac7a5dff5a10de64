package document

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func mustInsert(t *testing.T, d *Document, path string, v Scalar) {
	t.Helper()
	if err := d.Insert(path, v); err != nil {
		t.Fatalf("Insert(%q) error = %v", path, err)
	}
}

func TestInsert_SiblingsPreserved(t *testing.T) {
	d := New()
	mustInsert(t, d, "a.b", Int(1))
	mustInsert(t, d, "a.c", Int(2))

	for path, want := range map[string]int64{"a.b": 1, "a.c": 2} {
		got, ok := d.Get(path)
		if !ok {
			t.Fatalf("Get(%q) missing", path)
		}
		if got.Kind() != KindInt || got.AsInt() != want {
			t.Errorf("Get(%q) = %v (%s), want %d", path, got.Interface(), got.Kind(), want)
		}
	}
}

func TestInsert_OrderIndependent(t *testing.T) {
	inserts := []struct {
		path string
		v    Scalar
	}{
		{"station.mac", String("00:11:22:33:44:55")},
		{"station.battery.outdoor", String("Normal")},
		{"wind.speed.mph", Float(10)},
		{"wind.daily.gust.mph", Float(3.1)},
		{"humidity.outdoor.percentage", Int(55)},
	}

	forward := New()
	for _, in := range inserts {
		mustInsert(t, forward, in.path, in.v)
	}
	backward := New()
	for i := len(inserts) - 1; i >= 0; i-- {
		mustInsert(t, backward, inserts[i].path, inserts[i].v)
	}

	if !reflect.DeepEqual(forward.Map(), backward.Map()) {
		t.Fatalf("documents differ:\n%v\n%v", forward.Map(), backward.Map())
	}

	fj, err := json.Marshal(forward)
	if err != nil {
		t.Fatalf("marshal forward: %v", err)
	}
	bj, err := json.Marshal(backward)
	if err != nil {
		t.Fatalf("marshal backward: %v", err)
	}
	if string(fj) != string(bj) {
		t.Errorf("json differs:\n%s\n%s", fj, bj)
	}
}

func TestInsert_DeepensWithoutDiscarding(t *testing.T) {
	d := New()
	mustInsert(t, d, "wind.speed.mph", Float(10))
	mustInsert(t, d, "wind.daily.gust.mph", Float(12))
	mustInsert(t, d, "wind.direction.degrees", Int(180))

	want := []string{"wind.daily.gust.mph", "wind.direction.degrees", "wind.speed.mph"}
	if got := d.Paths(); !reflect.DeepEqual(got, want) {
		t.Errorf("Paths() = %v, want %v", got, want)
	}
}

func TestInsert_OverwritesLeaf(t *testing.T) {
	d := New()
	mustInsert(t, d, "temperature.outdoor.fahrenheit", Float(70))
	mustInsert(t, d, "temperature.outdoor.fahrenheit", Float(71))

	got, _ := d.Get("temperature.outdoor.fahrenheit")
	if got.AsFloat() != 71 {
		t.Errorf("leaf = %v, want 71", got.AsFloat())
	}
}

func TestInsert_Conflicts(t *testing.T) {
	d := New()
	mustInsert(t, d, "rain.total.in", Float(1))

	if err := d.Insert("rain.total.in.extra", Float(2)); !errors.Is(err, ErrPathConflict) {
		t.Errorf("insert through a leaf: error = %v, want ErrPathConflict", err)
	}
	if err := d.Insert("rain.total", Float(2)); !errors.Is(err, ErrPathConflict) {
		t.Errorf("replace a branch: error = %v, want ErrPathConflict", err)
	}
	if got, _ := d.Get("rain.total.in"); got.AsFloat() != 1 {
		t.Errorf("conflicting inserts modified the document: %v", d.Map())
	}
}

func TestInsert_InvalidPaths(t *testing.T) {
	d := New()
	for _, p := range []string{"", ".", "a..b", "a.", ".a"} {
		if err := d.Insert(p, Int(1)); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Insert(%q) error = %v, want ErrInvalidPath", p, err)
		}
	}
	if err := d.Insert("a", Scalar{}); err == nil {
		t.Errorf("Insert with zero scalar error = nil, want non-nil")
	}
}

func TestGet_Missing(t *testing.T) {
	d := New()
	mustInsert(t, d, "a.b", Int(1))

	for _, p := range []string{"a", "a.c", "a.b.c", "x"} {
		if _, ok := d.Get(p); ok {
			t.Errorf("Get(%q) ok = true, want false", p)
		}
	}
}

func TestMarshalJSON(t *testing.T) {
	d := New()
	mustInsert(t, d, "wind.speed.mph", Float(10))
	mustInsert(t, d, "wind.speed.kph", Float(16.09))
	mustInsert(t, d, "humidity.outdoor.percentage", Int(55))
	mustInsert(t, d, "station.battery.outdoor", String("Normal"))

	got, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	want := `{"humidity":{"outdoor":{"percentage":55}},"station":{"battery":{"outdoor":"Normal"}},"wind":{"speed":{"kph":16.09,"mph":10.0}}}`
	if string(got) != want {
		t.Errorf("json =\n%s\nwant\n%s", got, want)
	}
}

func TestMarshalJSON_Empty(t *testing.T) {
	got, err := json.Marshal(New())
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	if string(got) != "{}" {
		t.Errorf("json = %s, want {}", got)
	}
}

func TestScalarMarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   Scalar
		want string
	}{
		{name: "integral float", in: Float(37), want: "37.0"},
		{name: "negative float", in: Float(-3.5), want: "-3.5"},
		{name: "int", in: Int(55), want: "55"},
		{name: "string escaped", in: String(`a"b`), want: `"a\"b"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := tt.in.MarshalJSON()
			if err != nil {
				t.Fatalf("MarshalJSON error = %v", err)
			}
			if string(b) != tt.want {
				t.Errorf("got %s, want %s", b, tt.want)
			}
		})
	}
}
