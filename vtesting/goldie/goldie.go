package goldie

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"www.velocidex.com/golang/modtracker/json"
)

func Assert(t *testing.T, filename string, golden []byte) {
	t.Helper()

	g := goldie.New(t)
	_ = g.WithFixtureDir("fixtures")
	g.Assert(t, filename, golden)
}

func AssertJson(t *testing.T, filename string, golden interface{}) {
	t.Helper()

	g := goldie.New(t)
	_ = g.WithFixtureDir("fixtures")
	g.Assert(t, filename, json.MustMarshalIndent(golden))
}
