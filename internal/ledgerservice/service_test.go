package ledgerservice

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/go-petr/pet-ledger/pkg/randompkg"
)

func randomResult(owner, kind, amount string) domain.LedgerResult {
	return domain.LedgerResult{
		Transaction: domain.Transaction{
			ID:        randompkg.IntBetween(1, 1000),
			AccountID: randompkg.IntBetween(1, 1000),
			Owner:     owner,
			Kind:      kind,
			Amount:    amount,
			Status:    domain.StatusPending,
			CreatedAt: time.Now().Truncate(time.Second).UTC(),
		},
		Account: domain.Account{Owner: owner, Balance: "100.00"},
	}
}

func TestSubmit(t *testing.T) {
	t.Parallel()

	owner := randompkg.Owner()
	recipient := owner + "x"

	testCases := []struct {
		name          string
		kind          string
		arg           domain.MutationParams
		buildStubs    func(repo *MockRepo)
		checkResponse func(t *testing.T, res domain.LedgerResult, err error)
	}{
		{
			name: "DepositQuantizesAmount",
			kind: domain.KindDeposit,
			arg:  domain.MutationParams{Owner: owner, Amount: "10.005"},
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().
					Deposit(gomock.Any(), gomock.Eq(domain.MutationParams{Owner: owner, Amount: "10.00"})).
					Times(1).
					Return(randomResult(owner, domain.KindDeposit, "10.00"), nil)
			},
			checkResponse: func(t *testing.T, res domain.LedgerResult, err error) {
				require.NoError(t, err)
				require.Equal(t, "10.00", res.Transaction.Amount)
			},
		},
		{
			name: "WithdrawPadsAmount",
			kind: domain.KindWithdrawal,
			arg:  domain.MutationParams{Owner: owner, Amount: "7"},
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().
					Withdraw(gomock.Any(), gomock.Eq(domain.MutationParams{Owner: owner, Amount: "7.00"})).
					Times(1).
					Return(randomResult(owner, domain.KindWithdrawal, "7.00"), nil)
			},
			checkResponse: func(t *testing.T, res domain.LedgerResult, err error) {
				require.NoError(t, err)
			},
		},
		{
			name: "Transfer",
			kind: domain.KindTransfer,
			arg:  domain.MutationParams{Owner: owner, Counterparty: recipient, Amount: "200"},
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().
					Transfer(gomock.Any(), gomock.Eq(domain.MutationParams{Owner: owner, Counterparty: recipient, Amount: "200.00"})).
					Times(1).
					Return(randomResult(owner, domain.KindTransfer, "200.00"), nil)
			},
			checkResponse: func(t *testing.T, res domain.LedgerResult, err error) {
				require.NoError(t, err)
				require.Equal(t, domain.KindTransfer, res.Transaction.Kind)
			},
		},
		{
			name: "InsufficientFunds",
			kind: domain.KindWithdrawal,
			arg:  domain.MutationParams{Owner: owner, Amount: "600"},
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().
					Withdraw(gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.LedgerResult{}, domain.ErrInsufficientFunds)
			},
			checkResponse: func(t *testing.T, res domain.LedgerResult, err error) {
				require.ErrorIs(t, err, domain.ErrInsufficientFunds)
			},
		},
		{
			name: "MalformedAmount",
			kind: domain.KindDeposit,
			arg:  domain.MutationParams{Owner: owner, Amount: "ten"},
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().Deposit(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, res domain.LedgerResult, err error) {
				require.ErrorIs(t, err, domain.ErrInvalidAmount)
			},
		},
		{
			name: "AmountRoundsToZero",
			kind: domain.KindWithdrawal,
			arg:  domain.MutationParams{Owner: owner, Amount: "0.004"},
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().Withdraw(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, res domain.LedgerResult, err error) {
				require.ErrorIs(t, err, domain.ErrInvalidAmount)
			},
		},
		{
			name: "NegativeAmount",
			kind: domain.KindTransfer,
			arg:  domain.MutationParams{Owner: owner, Counterparty: recipient, Amount: "-5"},
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().Transfer(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, res domain.LedgerResult, err error) {
				require.ErrorIs(t, err, domain.ErrInvalidAmount)
			},
		},
		{
			name: "SelfTransfer",
			kind: domain.KindTransfer,
			arg:  domain.MutationParams{Owner: owner, Counterparty: owner, Amount: "5"},
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().Transfer(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, res domain.LedgerResult, err error) {
				require.ErrorIs(t, err, domain.ErrSelfTransferNotAllowed)
			},
		},
		{
			name: "MissingRecipient",
			kind: domain.KindTransfer,
			arg:  domain.MutationParams{Owner: owner, Amount: "5"},
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().Transfer(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, res domain.LedgerResult, err error) {
				require.ErrorIs(t, err, domain.ErrCounterpartyNotFound)
			},
		},
		{
			name: "ReversalIsNotSubmittable",
			kind: domain.KindReversal,
			arg:  domain.MutationParams{Owner: owner, Amount: "5"},
			buildStubs: func(repo *MockRepo) {
			},
			checkResponse: func(t *testing.T, res domain.LedgerResult, err error) {
				require.ErrorIs(t, err, domain.ErrInvalidKind)
			},
		},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			repo := NewMockRepo(ctrl)
			tc.buildStubs(repo)

			res, err := New(repo).Submit(context.Background(), tc.kind, tc.arg)
			tc.checkResponse(t, res, err)
		})
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	tx := domain.Transaction{ID: 5, Owner: "alice", Kind: domain.KindDeposit, Amount: "1.00"}

	testCases := []struct {
		name    string
		viewer  domain.Viewer
		repoErr error
		wantErr error
	}{
		{name: "Owner", viewer: domain.Viewer{Username: "alice", Role: domain.RoleUser}},
		{name: "Admin", viewer: domain.Viewer{Username: "root", Role: domain.RoleAdmin}},
		{name: "Foreign", viewer: domain.Viewer{Username: "bob", Role: domain.RoleUser}, wantErr: domain.ErrTransactionNotFound},
		{name: "NotFound", viewer: domain.Viewer{Username: "alice"}, repoErr: domain.ErrTransactionNotFound, wantErr: domain.ErrTransactionNotFound},
		{name: "Internal", viewer: domain.Viewer{Username: "alice"}, repoErr: errorspkg.ErrInternal, wantErr: errorspkg.ErrInternal},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			repo := NewMockRepo(ctrl)

			ret := tx
			if tc.repoErr != nil {
				ret = domain.Transaction{}
			}

			repo.EXPECT().Get(gomock.Any(), gomock.Eq(tx.ID)).Times(1).Return(ret, tc.repoErr)

			got, err := New(repo).Get(context.Background(), tc.viewer, tx.ID)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)

			if diff := cmp.Diff(tx, got); diff != "" {
				t.Errorf("Get mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		viewer   domain.Viewer
		username string
		pageID   int32
		pageSize int32
		want     domain.ListTransactionsParams
		wantErr  error
	}{
		{
			name:     "UserSeesOwnHistory",
			viewer:   domain.Viewer{Username: "alice", Role: domain.RoleUser},
			username: "bob",
			pageID:   2,
			pageSize: 10,
			want:     domain.ListTransactionsParams{Owner: "alice", Limit: 10, Offset: 10},
		},
		{
			name:     "AdminFiltersByUsername",
			viewer:   domain.Viewer{Username: "root", Role: domain.RoleAdmin},
			username: "bob",
			pageID:   1,
			pageSize: 5,
			want:     domain.ListTransactionsParams{Owner: "bob", Limit: 5},
		},
		{
			name:     "AdminListsEverything",
			viewer:   domain.Viewer{Username: "root", Role: domain.RoleAdmin},
			pageID:   3,
			pageSize: 5,
			want:     domain.ListTransactionsParams{Limit: 5, Offset: 10},
		},
		{
			name:     "InvalidPage",
			viewer:   domain.Viewer{Username: "alice"},
			pageID:   0,
			pageSize: 5,
			wantErr:  ErrInvalidPage,
		},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			repo := NewMockRepo(ctrl)

			if tc.wantErr == nil {
				repo.EXPECT().List(gomock.Any(), gomock.Eq(tc.want)).Times(1).Return([]domain.Transaction{}, nil)
			}

			_, err := New(repo).List(context.Background(), tc.viewer, tc.username, tc.pageID, tc.pageSize)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}
