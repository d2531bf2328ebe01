package cakemail

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataFromJSON(t *testing.T) {
	raw := []byte(`{
		"firstname": "Bob",
		"age": 9,
		"big": 9000000000,
		"balance": 12.345,
		"ratio": 1e3,
		"joined": "2014-03-02 13:04:05",
		"never": "0000-00-00 00:00:00",
		"active": true,
		"nothing": null,
		"tags": ["a", "b"]
	}`)

	data, err := DataFromJSON(raw)
	require.NoError(t, err)

	assert.Equal(t, "Bob", data["firstname"])
	assert.Equal(t, int64(9), data["age"])
	assert.Equal(t, int64(9000000000), data["big"])
	assert.Equal(t, 12.345, data["balance"])
	assert.Equal(t, 1000.0, data["ratio"])
	assert.Equal(t, time.Date(2014, 3, 2, 13, 4, 5, 0, time.UTC), data["joined"])
	assert.Nil(t, data["never"])
	assert.Contains(t, data, "never")
	assert.Equal(t, true, data["active"])
	assert.Nil(t, data["nothing"])
	assert.Equal(t, `["a", "b"]`, ValueOf(data["tags"]).String())
}

func TestDataFromJSONRendering(t *testing.T) {
	data, err := DataFromJSON([]byte(`{"age": 9, "joined": "2014-03-02 13:04:05", "never": "0000-00-00 00:00:00"}`))
	require.NoError(t, err)

	engine := newTestEngine(t)
	out := render(t, engine, "[IF `age` < 18]minor[ENDIF] [joined|yyyy] [never,no date]", data)
	assert.Equal(t, "minor 2014 no date", out)
}

func TestDataFromJSONInvalid(t *testing.T) {
	_, err := DataFromJSON([]byte(`{"a":`))
	assert.True(t, errors.Is(err, ErrInvalidData))

	_, err = DataFromJSON([]byte(`[1, 2]`))
	assert.True(t, errors.Is(err, ErrInvalidData))
}

func TestDataFromYAML(t *testing.T) {
	raw := []byte(`
firstname: Bob
age: 9
balance: 12.345
joined: "2014-03-02 13:04:05"
never: "0000-00-00 00:00:00"
active: true
nothing: null
address:
  city: Paris
`)

	data, err := DataFromYAML(raw)
	require.NoError(t, err)

	assert.Equal(t, "Bob", data["firstname"])
	assert.Equal(t, int64(9), data["age"])
	assert.Equal(t, 12.345, data["balance"])
	assert.Equal(t, time.Date(2014, 3, 2, 13, 4, 5, 0, time.UTC), data["joined"])
	assert.Nil(t, data["never"])
	assert.Equal(t, true, data["active"])
	assert.Nil(t, data["nothing"])
	assert.Equal(t, "city: Paris", ValueOf(data["address"]).String())
}

func TestDataFromYAMLInvalid(t *testing.T) {
	_, err := DataFromYAML([]byte("a: [1"))
	assert.Error(t, err)

	_, err = DataFromYAML([]byte(""))
	assert.True(t, errors.Is(err, ErrInvalidData))
}

func TestLoadData(t *testing.T) {
	data, err := LoadData("fields.yml", []byte("a: 1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), data["a"])

	data, err = LoadData("fields.json", []byte(`{"a": 1}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), data["a"])
}
