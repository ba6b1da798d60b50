package dataset_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotel_tones/internal/dataset"
	"hotel_tones/internal/domain"
)

const sample = `address,categories,city,country,latitude,longitude,name,postalCode,province,reviews.date,reviews.rating,reviews.text,reviews.title,reviews.username
Riviera San Nicol 11/a,Hotels,Mableton,US,45.421611,12.376187,Hotel Russo Palace,30126,GA,2013-09-22T00:00:00Z,4,Pleasant 10 min walk along the sea front,Good location away from the crouds,Russ (kent)
Riviera San Nicol 11/a,Hotels,Mableton,US,45.421611,12.376187,hotel russo palace,30126,GA,2015-04-03T00:00:00Z,5,Really lovely hotel. Stayed on the very top floor,Great hotel with Jacuzzi bath!,A Traveler
1 Main St,Restaurants,Mableton,US,45.0,12.0,Pizza Place,30126,GA,2015-04-03T00:00:00Z,3,Fine pizza,Ok,Bob
5 Ocean Ave,Hotels,Pismo,US,35.1,-120.6,Sea Breeze Inn,,CA,2016-01-01T00:00:00Z,3.5,,Nice,Ana
`

func TestRead_FiltersHotelsAndGroupsCaseInsensitive(t *testing.T) {
	ds, err := dataset.Read(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, []string{"hotel russo palace", "sea breeze inn"}, ds.Hotels())
	assert.NotContains(t, ds.Columns(), dataset.CategoryColumn)

	g, err := ds.Group("Hotel RUSSO Palace")
	require.NoError(t, err)
	assert.Equal(t, "hotel russo palace", g.Name)
	require.Len(t, g.Records, 2)
	for _, r := range g.Records {
		assert.Equal(t, "hotel russo palace", r.Fields["name"])
		_, hasCat := r.Fields[dataset.CategoryColumn]
		assert.False(t, hasCat)
	}
}

func TestRead_InfersColumnTypes(t *testing.T) {
	ds, err := dataset.Read(strings.NewReader(sample))
	require.NoError(t, err)

	g, err := ds.Group("sea breeze inn")
	require.NoError(t, err)
	f := g.Records[0].Fields

	assert.Equal(t, 35.1, f["latitude"])
	assert.Equal(t, 3.5, f["reviews.rating"])
	assert.Nil(t, f["postalCode"])
	assert.Nil(t, f["reviews.text"])
	assert.Equal(t, "Nice", f["reviews.title"])

	russo, _ := ds.Group("hotel russo palace")
	assert.Equal(t, float64(4), russo.Records[0].Fields["reviews.rating"])
	assert.Equal(t, int64(30126), russo.Records[0].Fields["postalCode"])
}

func TestRead_UnknownHotel(t *testing.T) {
	ds, err := dataset.Read(strings.NewReader(sample))
	require.NoError(t, err)

	_, err = ds.Group("nowhere inn")
	assert.ErrorIs(t, err, domain.ErrUnknownHotel)
}

func TestRead_MissingRequiredColumn(t *testing.T) {
	_, err := dataset.Read(strings.NewReader("name,city\nA,B\n"))
	assert.ErrorIs(t, err, domain.ErrMissingColumn)

	_, err = dataset.Read(strings.NewReader(""))
	assert.ErrorIs(t, err, domain.ErrMissingColumn)
}

func TestRead_MalformedFile(t *testing.T) {
	_, err := dataset.Read(strings.NewReader("categories,name\nHotels,A,extra\n"))
	assert.Error(t, err)
}

func TestRead_NoHotelRows(t *testing.T) {
	ds, err := dataset.Read(strings.NewReader("categories,name\nRestaurants,A\n"))
	require.NoError(t, err)
	assert.Zero(t, ds.Len())
	assert.Empty(t, ds.Groups())
}

func TestStore_ReloadsChangedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	st := dataset.NewStore()
	first, err := st.Get(path)
	require.NoError(t, err)
	again, err := st.Get(path)
	require.NoError(t, err)
	assert.Same(t, first, again)

	updated := sample + "9 Hill Rd,Hotels,Mableton,US,1,2,Hill Lodge,1,GA,2016-01-01T00:00:00Z,4,Quiet,Ok,Zed\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	reloaded, err := st.Get(path)
	require.NoError(t, err)
	assert.NotSame(t, first, reloaded)
	assert.Contains(t, reloaded.Hotels(), "hill lodge")
}

func TestStore_MissingFile(t *testing.T) {
	_, err := dataset.NewStore().Get(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}
