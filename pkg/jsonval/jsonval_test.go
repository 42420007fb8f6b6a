package jsonval

import "testing"

func TestObjectPreservesInsertionOrder(t *testing.T) {
	o := NewObject()
	o.Set("Checksum-Algorithm", String("SHA256"))
	o.Set("Path", String("base/1/1259"))
	o.Set("Size", Int(8192))

	want := []string{"Checksum-Algorithm", "Path", "Size"}
	got := o.Keys()
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Keys() = %v, want %v", got, want)
		}
	}
}

func TestSetExistingKeyKeepsPosition(t *testing.T) {
	o := NewObject()
	o.Set("a", Int(1))
	o.Set("b", Int(2))
	o.Set("a", Int(99))

	got := o.Keys()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("Keys() = %v, want [a b]", got)
	}
	v, ok := o.Get("a")
	if !ok {
		t.Fatal("expected a to be present")
	}
	i, ok := v.Int()
	if !ok || i != 99 {
		t.Fatalf("a = %v, want 99", i)
	}
}

func TestMarshalJSONOrderedObject(t *testing.T) {
	o := NewObject()
	o.Set("b", Int(2))
	o.Set("a", Int(1))
	v := Obj(o)

	data, err := v.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	want := `{"b":2,"a":1}`
	if string(data) != want {
		t.Fatalf("MarshalJSON() = %s, want %s", data, want)
	}
}

func TestMarshalJSONArrayAndScalars(t *testing.T) {
	v := Array(Null(), Bool(true), String("x"), Float(1.5))
	data, err := v.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	want := `[null,true,"x",1.5]`
	if string(data) != want {
		t.Fatalf("MarshalJSON() = %s, want %s", data, want)
	}
}
