// Package serialization reads and writes generator weights and style codes in
// the SafeTensors format.
//
//	File Structure:
//	  [8 bytes: header size N (uint64 LE)]
//	  [N bytes: JSON header, tensor name -> {dtype, shape, data_offsets}]
//	  [tensor data: raw little-endian bytes]
//
// The optional "__metadata__" header entry holds string key/value pairs.
// Tensors are always written as F32 or F64. When reading, F16 and BF16
// tensors are widened to float32 and I64/I32 tensors are converted to float64,
// so checkpoints exported in half precision load without a separate tool.
//
// Example usage:
//
//	dict := gen.StateDict()
//	if err := serialization.WriteSafeTensors("g3.safetensors", dict, nil); err != nil {
//	    log.Fatal(err)
//	}
//
//	file, err := serialization.ReadSafeTensors("g3.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := gen.LoadStateDict(file.Tensors); err != nil {
//	    log.Fatal(err)
//	}
package serialization
