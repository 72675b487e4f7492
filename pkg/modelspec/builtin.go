package modelspec

import (
	"fmt"

	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/hwmodel"
)

// Builtin returns a Registry pre-populated with the models shipped
// alongside this debugger: a minimal "test" model for smoke-testing
// against a small trace, a single-core "blackparrot" model, a 2x2
// "manycore" model, and a 4x4 "hammerblade" model. --model-arg is
// opaque to all four; they ignore it.
func Builtin() *Registry {
	r := NewRegistry()
	r.Register("test", buildTestModel)
	r.Register("blackparrot", buildBlackParrotModel)
	r.Register("manycore", buildManycoreModel)
	r.Register("hammerblade", buildHammerbladeModel)
	return r
}

func buildTestModel(_ map[string]string) (*Spec, error) {
	return &Spec{
		Name:     "test",
		EdgeTime: 100,
		Modules: []ModuleSpec{
			{
				Name:    "r0_data",
				Kind:    KindBasic,
				Signals: []string{"logic.data", "logic.data_valid"},
			},
			{
				Name:         "memory",
				Kind:         KindMemory,
				AddrSignal:   "logic.waddr",
				WDataSignal:  "logic.wdata",
				EnableSignal: "logic.tx_en",
				EnableLevel:  true,
				Signals:      []string{"logic.waddr", "logic.wdata", "logic.tx_en"},
			},
		},
	}, nil
}

func blackParrotCoreSpec(coreID int) []ModuleSpec {
	rfHeader := fmt.Sprintf("test_bp.tb.wrapper.dut.cc.bp_top.rof1[%d].tile.core.be.be_calculator.", coreID)
	addr := rfHeader + "int_regfile.rd_addr_i"
	wdata := rfHeader + "int_regfile.rd_data_i"
	wen := rfHeader + "int_regfile.rd_w_v_i"
	size := uint64(32)

	instHeader := fmt.Sprintf("test_bp.tb.wrapper.dut.cc.bp_top.rof1[%d].tile.core.be.", coreID)
	pc := instHeader + "be_checker.expected_npc"
	instSigs := []string{
		instHeader + "be_calculator.pc_mem3_o",
		instHeader + "be_calculator.instr_mem3_o",
	}

	return []ModuleSpec{
		{
			Name:         fmt.Sprintf("rf_%d", coreID),
			Kind:         KindMemory,
			AddrSignal:   addr,
			WDataSignal:  wdata,
			EnableSignal: wen,
			EnableLevel:  true,
			Size:         &size,
			ShowSignals:  true,
		},
		{
			Name:     fmt.Sprintf("inst_%d", coreID),
			Kind:     KindCore,
			PCSignal: pc,
			Signals:  append([]string{pc}, instSigs...),
		},
	}
}

func buildBlackParrotModel(_ map[string]string) (*Spec, error) {
	return &Spec{
		Name:     "blackparrot",
		EdgeTime: 20,
		Modules:  blackParrotCoreSpec(0),
	}, nil
}

func manycoreTileSpecs(coreX, coreY int) []ModuleSpec {
	hobbit := fmt.Sprintf("test_bsg_manycore.UUT.y[%d].x[%d].tile.proc.h.z.hobbit0.", coreY+1, coreX)
	z := fmt.Sprintf("test_bsg_manycore.UUT.y[%d].x[%d].tile.proc.h.z.", coreY+1, coreX)

	rfAddr := hobbit + "rf_wa"
	rfWData := hobbit + "rf_wd"
	rfWen := hobbit + "rf_wen"
	size := uint64(32)

	pc := hobbit + "pc_real"
	instSigs := []string{hobbit + "exe.pc_plus4", hobbit + "id.pc_plus4"}

	memAddr := hobbit + "to_mem_o.addr"
	memWData := hobbit + "to_mem_o.payload.write_data"
	isLoad := hobbit + "mem.decode.is_load_op"
	isStore := hobbit + "mem.decode.is_store_op"
	stall := hobbit + "stall"

	lout := z + "launching_out"
	remoteAddr := z + "data_o_debug.addr"
	remoteData := z + "data_o_debug.payload.data"
	xCord := z + "data_o_debug.y_cord"
	yCord := z + "data_o_debug.x_cord"

	suffix := fmt.Sprintf("%d_%d", coreY, coreX)
	return []ModuleSpec{
		{
			Name:    "remote_" + suffix,
			Kind:    KindBasic,
			Signals: []string{lout, remoteAddr, remoteData, xCord, yCord},
		},
		{
			Name:    "wmem_" + suffix,
			Kind:    KindBasic,
			Signals: []string{memAddr, memWData, isLoad, isStore, stall},
		},
		{
			Name:         "rf_" + suffix,
			Kind:         KindMemory,
			AddrSignal:   rfAddr,
			WDataSignal:  rfWData,
			EnableSignal: rfWen,
			EnableLevel:  true,
			Size:         &size,
			ShowSignals:  true,
		},
		{
			Name:     "inst_" + suffix,
			Kind:     KindCore,
			PCSignal: pc,
			Signals:  append([]string{pc}, instSigs...),
		},
	}
}

func buildManycoreModel(_ map[string]string) (*Spec, error) {
	modules := make([]ModuleSpec, 0, 16)
	for x := 0; x < 2; x++ {
		for y := 0; y < 2; y++ {
			modules = append(modules, manycoreTileSpecs(x, y)...)
		}
	}
	return &Spec{Name: "manycore", EdgeTime: 20, Modules: modules}, nil
}

// hexAddr parses a single hex digit/byte string ("a", "17") into a
// one-address AddrRange, the segments form hammerblade_model.py uses
// (as opposed to the (lo, hi) range tuples models/manycore_model.py's
// segments comment also shows).
func hexAddr(s string) hwmodel.AddrRange {
	var v uint64
	fmt.Sscanf(s, "%x", &v)
	return hwmodel.AddrRange{Lo: v, Hi: v}
}

// hammerbladeTileSpecs ports hammerblade_model.py's per-tile module
// generation (gen_remote_module/gen_wmem_module/gen_rf_module/
// gen_inst_module) for tile (coreX, coreY) in the 4x4 grid. Unlike
// blackParrotCoreSpec/manycoreTileSpecs, the original's inst module is
// a plain BasicModule (no designated PC), so it is ported as
// KindBasic here rather than KindCore.
func hammerbladeTileSpecs(coreX, coreY int) []ModuleSpec {
	hobbit := fmt.Sprintf("tb.card.fpga.CL.manycore_wrapper.manycore.y[%d].x[%d].tile.proc.h.z.hobbit0.", coreY+1, coreX)
	z := fmt.Sprintf("tb.card.fpga.CL.manycore_wrapper.manycore.y[%d].x[%d].tile.proc.h.z.", coreY+1, coreX)

	rfAddr := hobbit + "rf_wa"
	rfWData := hobbit + "rf_wd"
	rfWen := hobbit + "rf_wen"
	rfSize := uint64(32)
	rfSegments := []hwmodel.AddrRange{hexAddr("a"), hexAddr("b"), hexAddr("17"), hexAddr("18")}

	instSigs := []string{hobbit + "exe.pc_plus4"}

	memAddr := hobbit + "to_mem_o.addr"
	memWData := hobbit + "to_mem_o.payload.write_data"
	isLoad := hobbit + "mem.decode.is_load_op"
	isStore := hobbit + "mem.decode.is_store_op"
	stall := hobbit + "stall"

	lout := z + "launching_out"
	remoteAddr := z + "data_o_debug.addr"
	remoteData := z + "data_o_debug.payload.data"
	xCord := z + "data_o_debug.y_cord"
	yCord := z + "data_o_debug.x_cord"

	suffix := fmt.Sprintf("%d_%d", coreY, coreX)
	return []ModuleSpec{
		{
			Name:    "remote_" + suffix,
			Kind:    KindBasic,
			Signals: []string{lout, remoteAddr, remoteData, xCord, yCord},
		},
		{
			Name:    "wmem_" + suffix,
			Kind:    KindBasic,
			Signals: []string{memAddr, memWData, isLoad, isStore, stall},
		},
		{
			Name:         "rf_" + suffix,
			Kind:         KindMemory,
			AddrSignal:   rfAddr,
			WDataSignal:  rfWData,
			EnableSignal: rfWen,
			EnableLevel:  true,
			Size:         &rfSize,
			Segments:     rfSegments,
			ShowSignals:  false,
		},
		{
			Name:    "inst_" + suffix,
			Kind:    KindBasic,
			Signals: instSigs,
		},
	}
}

func buildHammerbladeModel(_ map[string]string) (*Spec, error) {
	modules := make([]ModuleSpec, 0, 64)
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			modules = append(modules, hammerbladeTileSpecs(x, y)...)
		}
	}
	return &Spec{Name: "hammerblade", EdgeTime: 20, Modules: modules}, nil
}
