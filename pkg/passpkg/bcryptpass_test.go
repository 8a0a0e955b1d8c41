package passpkg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/go-petr/pet-ledger/pkg/randompkg"
)

func TestHash(t *testing.T) {
	testCases := []struct {
		name     string
		password string
		wantErr  error
	}{
		{name: "Shortest", password: "secret"},
		{name: "Random", password: randompkg.String(32)},
		{name: "Longest", password: strings.Repeat("p", MaxLength)},
		{name: "TooLong", password: strings.Repeat("p", MaxLength+1), wantErr: bcrypt.ErrPasswordTooLong},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			hashed, err := Hash(tc.password)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				require.Empty(t, hashed)

				return
			}

			require.NoError(t, err)
			require.NoError(t, Check(tc.password, hashed))

			cost, err := bcrypt.Cost([]byte(hashed))
			require.NoError(t, err)
			require.Equal(t, bcrypt.DefaultCost, cost)
		})
	}
}

func TestCheck(t *testing.T) {
	password := randompkg.String(12)

	hashed, err := Hash(password)
	require.NoError(t, err)

	require.ErrorIs(t, Check(password+"x", hashed), bcrypt.ErrMismatchedHashAndPassword)
	require.ErrorIs(t, Check(strings.ToUpper(password), hashed), bcrypt.ErrMismatchedHashAndPassword)
	require.Error(t, Check(password, "not-a-hash"))

	again, err := Hash(password)
	require.NoError(t, err)
	require.NotEqual(t, hashed, again)
	require.NoError(t, Check(password, again))
}
