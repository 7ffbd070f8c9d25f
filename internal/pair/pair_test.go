package pair

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mathewwhere/lssvm/internal/asset"
	"github.com/mathewwhere/lssvm/internal/curve"
	"github.com/mathewwhere/lssvm/internal/inventory"
)

var (
	pairAddr   = common.HexToAddress("0x0000000000000000000000000000000000001001")
	owner      = common.HexToAddress("0x0000000000000000000000000000000000002002")
	trader     = common.HexToAddress("0x0000000000000000000000000000000000003003")
	treasury   = common.HexToAddress("0x0000000000000000000000000000000000004004")
	collection = common.HexToAddress("0x0000000000000000000000000000000000005005")
	tokenAsset = common.HexToAddress("0x0000000000000000000000000000000000006006")
)

type stubFees struct {
	bps    uint64
	routed []*uint256.Int
}

func (s *stubFees) ProtocolFeeBps() uint64    { return s.bps }
func (s *stubFees) Treasury() common.Address  { return treasury }
func (s *stubFees) RouteFee(_ common.Address, _ common.Address, amount *uint256.Int) error {
	s.routed = append(s.routed, new(uint256.Int).Set(amount))
	return nil
}

type fixture struct {
	pair *Pair
	book *asset.Book
	nfts *asset.NFTBook
	fees *stubFees
}

func newFixture(t *testing.T, poolType PoolType, feeBps, protocolBps uint64, assetID common.Address, enumerable bool) *fixture {
	t.Helper()

	book := asset.NewBook()
	nfts := asset.NewNFTBook()
	fees := &stubFees{bps: protocolBps}

	ids := []uint64{5, 9, 12}
	var inv inventory.Inventory
	var err error
	if enumerable {
		inv, err = inventory.NewEnumerable(ids)
	} else {
		inv, err = inventory.NewSet(ids)
	}
	if err != nil {
		t.Fatalf("build inventory: %v", err)
	}
	nfts.Mint(collection, pairAddr, ids...)

	p, err := New(Config{
		Address:    pairAddr,
		Owner:      owner,
		Collection: collection,
		AssetID:    assetID,
		PoolType:   poolType,
		Curve:      curve.Linear{},
		Params: curve.Params{
			SpotPrice: uint256.NewInt(100),
			Delta:     uint256.NewInt(10),
		},
		FeeBps:    feeBps,
		Inventory: inv,
	}, book, nfts, fees)
	if err != nil {
		t.Fatalf("build pair: %v", err)
	}

	book.Mint(assetID, trader, uint256.NewInt(10_000))
	book.Mint(assetID, pairAddr, uint256.NewInt(1_000))
	return &fixture{pair: p, book: book, nfts: nfts, fees: fees}
}

func TestBuySpecificNative(t *testing.T) {
	f := newFixture(t, TradePool, 0, 0, asset.Native, true)

	res, err := f.pair.SwapTokenForSpecificNFTs(trader, trader, []uint64{5, 9}, uint256.NewInt(500))
	if err != nil {
		t.Fatalf("swap failed: %v", err)
	}

	// 100 + 110
	if res.Amount.Uint64() != 210 {
		t.Fatalf("input mismatch: got %s, want 210", res.Amount)
	}
	if got := f.pair.Params().SpotPrice.Uint64(); got != 120 {
		t.Fatalf("spot mismatch: got %d, want 120", got)
	}
	if !reflect.DeepEqual(f.pair.HeldIDs(), []uint64{12}) {
		t.Fatalf("inventory mismatch: %v", f.pair.HeldIDs())
	}
	ownerOf5, _ := f.nfts.OwnerOf(collection, 5)
	if ownerOf5 != trader {
		t.Fatalf("id 5 not delivered: owner %s", ownerOf5)
	}
	if got := f.book.BalanceOf(asset.Native, trader).Uint64(); got != 10_000-210 {
		t.Fatalf("trader balance: got %d, want %d", got, 10_000-210)
	}
	// zero-address asset recipient keeps principal in the pool
	if got := f.pair.Balance().Uint64(); got != 1_000+210 {
		t.Fatalf("pool balance: got %d, want %d", got, 1_000+210)
	}
}

func TestBuySlippageMutatesNothing(t *testing.T) {
	f := newFixture(t, TradePool, 0, 0, asset.Native, true)
	before := f.pair.Params()
	beforeIDs := f.pair.HeldIDs()

	_, err := f.pair.SwapTokenForSpecificNFTs(trader, trader, []uint64{5, 9}, uint256.NewInt(209))
	if !errors.Is(err, ErrSlippageExceeded) {
		t.Fatalf("expected ErrSlippageExceeded, got %v", err)
	}
	if !f.pair.Params().SpotPrice.Eq(before.SpotPrice) {
		t.Fatalf("failed swap changed spot")
	}
	if !reflect.DeepEqual(f.pair.HeldIDs(), beforeIDs) {
		t.Fatalf("failed swap changed inventory")
	}
	if got := f.book.BalanceOf(asset.Native, trader).Uint64(); got != 10_000 {
		t.Fatalf("failed swap moved funds: %d", got)
	}
}

func TestBuyAnyEnumerableIsDeterministic(t *testing.T) {
	for run := 0; run < 3; run++ {
		f := newFixture(t, NFTPool, 0, 0, asset.Native, true)
		res, err := f.pair.SwapTokenForAnyNFTs(trader, trader, 2, uint256.NewInt(500))
		if err != nil {
			t.Fatalf("swap failed: %v", err)
		}
		if !reflect.DeepEqual(res.IDs, []uint64{5, 9}) {
			t.Fatalf("front-of-sequence policy broken: got %v", res.IDs)
		}
	}
}

func TestBuyAnySetByCount(t *testing.T) {
	f := newFixture(t, NFTPool, 0, 0, asset.Native, false)
	res, err := f.pair.SwapTokenForAnyNFTs(trader, trader, 2, uint256.NewInt(500))
	if err != nil {
		t.Fatalf("swap failed: %v", err)
	}
	if len(res.IDs) != 2 || f.pair.InventorySize() != 1 {
		t.Fatalf("counts wrong: took %d, left %d", len(res.IDs), f.pair.InventorySize())
	}
}

func TestBuyMissingID(t *testing.T) {
	f := newFixture(t, TradePool, 0, 0, asset.Native, true)
	_, err := f.pair.SwapTokenForSpecificNFTs(trader, trader, []uint64{99}, uint256.NewInt(500))
	if !errors.Is(err, ErrNftNotInPool) {
		t.Fatalf("expected ErrNftNotInPool, got %v", err)
	}
}

func TestBuyFromTokenPool(t *testing.T) {
	f := newFixture(t, TokenPool, 0, 0, asset.Native, true)
	_, err := f.pair.SwapTokenForAnyNFTs(trader, trader, 1, uint256.NewInt(500))
	if !errors.Is(err, ErrWrongPoolType) {
		t.Fatalf("expected ErrWrongPoolType, got %v", err)
	}
}

func TestBuyMoreThanHeld(t *testing.T) {
	f := newFixture(t, TradePool, 0, 0, asset.Native, true)
	_, err := f.pair.SwapTokenForAnyNFTs(trader, trader, 4, uint256.NewInt(10_000))
	if !errors.Is(err, ErrEmptyPool) {
		t.Fatalf("expected ErrEmptyPool, got %v", err)
	}
}

func TestBuyFeeSplit(t *testing.T) {
	f := newFixture(t, TradePool, 100, 50, asset.Native, true)

	res, err := f.pair.SwapTokenForSpecificNFTs(trader, trader, []uint64{5, 9}, uint256.NewInt(500))
	if err != nil {
		t.Fatalf("swap failed: %v", err)
	}

	// principal 210, trade fee 2 (100bps), protocol fee 1 (50bps)
	if res.Amount.Uint64() != 213 {
		t.Fatalf("total mismatch: got %s, want 213", res.Amount)
	}
	if got := f.book.BalanceOf(asset.Native, treasury).Uint64(); got != 1 {
		t.Fatalf("treasury: got %d, want 1", got)
	}
	if got := f.book.BalanceOf(asset.Native, owner).Uint64(); got != 2 {
		t.Fatalf("fee recipient: got %d, want 2", got)
	}
	if len(f.fees.routed) != 1 || f.fees.routed[0].Uint64() != 1 {
		t.Fatalf("protocol fee not routed: %v", f.fees.routed)
	}
	sum := res.ProtocolFee.Uint64() + res.TradeFee.Uint64() + 210
	if sum != res.Amount.Uint64() {
		t.Fatalf("fee identity broken: %d != %s", sum, res.Amount)
	}
}

func TestSellIntoPool(t *testing.T) {
	f := newFixture(t, TradePool, 0, 0, asset.Native, true)
	f.nfts.Mint(collection, trader, 77)
	f.nfts.SetApprovalForAll(collection, trader, pairAddr, true)

	res, err := f.pair.SwapNFTsForToken(trader, trader, []uint64{77}, uint256.NewInt(80))
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}
	// first unit out at spot - delta
	if res.Amount.Uint64() != 90 {
		t.Fatalf("output mismatch: got %s, want 90", res.Amount)
	}
	if got := f.pair.Params().SpotPrice.Uint64(); got != 90 {
		t.Fatalf("spot mismatch: got %d, want 90", got)
	}
	if !f.pair.Holds(77) {
		t.Fatalf("sold id not in inventory")
	}
	newOwner, _ := f.nfts.OwnerOf(collection, 77)
	if newOwner != pairAddr {
		t.Fatalf("id 77 not custodied by pool: %s", newOwner)
	}
	if got := f.book.BalanceOf(asset.Native, trader).Uint64(); got != 10_000+90 {
		t.Fatalf("trader balance: got %d", got)
	}
}

func TestSellBelowMinOutput(t *testing.T) {
	f := newFixture(t, TradePool, 0, 0, asset.Native, true)
	f.nfts.Mint(collection, trader, 77)
	f.nfts.SetApprovalForAll(collection, trader, pairAddr, true)

	_, err := f.pair.SwapNFTsForToken(trader, trader, []uint64{77}, uint256.NewInt(91))
	if !errors.Is(err, ErrSlippageExceeded) {
		t.Fatalf("expected ErrSlippageExceeded, got %v", err)
	}
	if f.pair.Holds(77) {
		t.Fatalf("failed sell mutated inventory")
	}
}

func TestSellRepeatedIDPaysNothing(t *testing.T) {
	f := newFixture(t, TradePool, 0, 0, asset.Native, true)
	f.nfts.Mint(collection, trader, 77)
	f.nfts.SetApprovalForAll(collection, trader, pairAddr, true)
	before := f.pair.Params()

	// a two-unit quote for a single NFT would pay out 90 + 80
	_, err := f.pair.SwapNFTsForToken(trader, trader, []uint64{77, 77}, nil)
	if !errors.Is(err, ErrNftNotInPool) {
		t.Fatalf("expected ErrNftNotInPool, got %v", err)
	}
	if !f.pair.Params().SpotPrice.Eq(before.SpotPrice) {
		t.Fatalf("rejected sell changed spot")
	}
	if f.pair.Holds(77) || f.pair.InventorySize() != 3 {
		t.Fatalf("rejected sell mutated inventory: %v", f.pair.HeldIDs())
	}
	if got := f.book.BalanceOf(asset.Native, trader).Uint64(); got != 10_000 {
		t.Fatalf("rejected sell moved funds: %d", got)
	}
	ownerOf77, _ := f.nfts.OwnerOf(collection, 77)
	if ownerOf77 != trader {
		t.Fatalf("rejected sell moved the NFT: %s", ownerOf77)
	}
}

func TestDepositRepeatedID(t *testing.T) {
	f := newFixture(t, TradePool, 0, 0, asset.Native, true)
	f.nfts.Mint(collection, owner, 77)
	f.nfts.SetApprovalForAll(collection, owner, pairAddr, true)

	err := f.pair.DepositNFTs(owner, []uint64{77, 77})
	if !errors.Is(err, inventory.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if f.pair.Holds(77) || f.pair.InventorySize() != 3 {
		t.Fatalf("rejected deposit mutated inventory: %v", f.pair.HeldIDs())
	}
}

func TestSellUnownedID(t *testing.T) {
	f := newFixture(t, TradePool, 0, 0, asset.Native, true)
	_, err := f.pair.SwapNFTsForToken(trader, trader, []uint64{424242}, nil)
	if !errors.Is(err, ErrNftNotInPool) {
		t.Fatalf("expected ErrNftNotInPool, got %v", err)
	}
}

func TestSellIntoNFTPool(t *testing.T) {
	f := newFixture(t, NFTPool, 0, 0, asset.Native, true)
	_, err := f.pair.SwapNFTsForToken(trader, trader, []uint64{77}, nil)
	if !errors.Is(err, ErrWrongPoolType) {
		t.Fatalf("expected ErrWrongPoolType, got %v", err)
	}
}

func TestSellIntoDrainedPool(t *testing.T) {
	f := newFixture(t, TradePool, 0, 0, asset.Native, true)
	if err := f.pair.WithdrawToken(owner, owner, uint256.NewInt(1_000)); err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	f.nfts.Mint(collection, trader, 77)
	f.nfts.SetApprovalForAll(collection, trader, pairAddr, true)

	_, err := f.pair.SwapNFTsForToken(trader, trader, []uint64{77}, nil)
	if !errors.Is(err, ErrEmptyPool) {
		t.Fatalf("expected ErrEmptyPool, got %v", err)
	}
}

func TestSellWithoutApprovalRollsBack(t *testing.T) {
	f := newFixture(t, TradePool, 0, 0, asset.Native, true)
	f.nfts.Mint(collection, trader, 77)
	before := f.pair.Params()

	_, err := f.pair.SwapNFTsForToken(trader, trader, []uint64{77}, nil)
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if !f.pair.Params().SpotPrice.Eq(before.SpotPrice) {
		t.Fatalf("failed settlement left mutated params")
	}
	if f.pair.Holds(77) {
		t.Fatalf("failed settlement left mutated inventory")
	}
	if got := f.book.BalanceOf(asset.Native, trader).Uint64(); got != 10_000 {
		t.Fatalf("failed settlement moved funds: %d", got)
	}
}

func TestTokenModeNeedsAllowance(t *testing.T) {
	f := newFixture(t, TradePool, 0, 0, tokenAsset, true)
	before := f.pair.Params()

	_, err := f.pair.SwapTokenForSpecificNFTs(trader, trader, []uint64{5}, uint256.NewInt(500))
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if !f.pair.Params().SpotPrice.Eq(before.SpotPrice) || f.pair.InventorySize() != 3 {
		t.Fatalf("failed settlement left mutated state")
	}

	f.book.Approve(tokenAsset, trader, pairAddr, uint256.NewInt(100))
	if _, err := f.pair.SwapTokenForSpecificNFTs(trader, trader, []uint64{5}, uint256.NewInt(500)); err != nil {
		t.Fatalf("approved swap failed: %v", err)
	}
	if got := f.book.Allowance(tokenAsset, trader, pairAddr).Uint64(); got != 0 {
		t.Fatalf("allowance not consumed: %d", got)
	}
}

func TestZeroFeeRoundTripRestoresParams(t *testing.T) {
	f := newFixture(t, TradePool, 0, 0, asset.Native, true)
	start := f.pair.Params()
	f.nfts.SetApprovalForAll(collection, trader, pairAddr, true)

	buy, err := f.pair.SwapTokenForSpecificNFTs(trader, trader, []uint64{5, 9}, uint256.NewInt(500))
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	sell, err := f.pair.SwapNFTsForToken(trader, trader, []uint64{5, 9}, nil)
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	if !f.pair.Params().SpotPrice.Eq(start.SpotPrice) {
		t.Fatalf("round trip did not restore spot: %s", f.pair.Params().SpotPrice)
	}
	if !buy.Amount.Eq(sell.Amount) {
		t.Fatalf("zero-fee round trip not value neutral: %s vs %s", buy.Amount, sell.Amount)
	}
}

func TestOwnerGates(t *testing.T) {
	f := newFixture(t, TradePool, 0, 0, asset.Native, true)

	if err := f.pair.SetFeeBps(trader, 50); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := f.pair.WithdrawToken(trader, trader, uint256.NewInt(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := f.pair.WithdrawNFTs(trader, trader, []uint64{5}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	if err := f.pair.SetFeeBps(owner, 50); err != nil {
		t.Fatalf("owner fee change failed: %v", err)
	}
	if err := f.pair.WithdrawNFTs(owner, owner, []uint64{12}); err != nil {
		t.Fatalf("owner withdraw failed: %v", err)
	}
	ownerOf12, _ := f.nfts.OwnerOf(collection, 12)
	if ownerOf12 != owner {
		t.Fatalf("withdrawn id owner: %s", ownerOf12)
	}
}

func TestSetParamsValidatesDomain(t *testing.T) {
	f := newFixture(t, TradePool, 0, 0, asset.Native, true)
	err := f.pair.SetParams(owner, curve.Params{})
	if !errors.Is(err, curve.ErrInvalidSpotPrice) {
		t.Fatalf("expected ErrInvalidSpotPrice, got %v", err)
	}
}
