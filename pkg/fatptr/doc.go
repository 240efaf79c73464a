// Package fatptr is the runtime half of fatptr's generated type erasure.
//
// The fatptr generator turns a Go interface declaration into three pieces of
// source code that live next to the interface:
//
//   - a dispatch table shape, a struct with one func-typed slot per method
//     taking an opaque unsafe.Pointer in place of the receiver;
//   - a generic table constructor, <I>TableFor[T, PT], whose constraint
//     `interface{ *T; I }` rejects non-conforming types at compile time and
//     whose trampolines recover *T from the opaque pointer;
//   - wrapper types (<I>Ref, optionally <I>Inline) pairing a data pointer
//     with a table and forwarding every method.
//
// This package supplies what that generated code shares:
//
//   - Interface, the runtime handle naming an interface and its methods;
//   - Intern, the process-wide build-once cache of dispatch tables keyed by
//     (interface, concrete type), which makes table pointer equality mean
//     "same concrete type";
//   - Own and Borrow, the two supported storage policies;
//   - NoZero, the marker that lets the fatptrzero analyzer reject
//     zero-value wrappers;
//   - the enumerated Storage, Destruction and Dispatch policy knobs.
//
// Typical generated usage:
//
//	refs := []shapes.DescriberRef{
//		shapes.NewDescriberRef(shapes.Circle{Radius: 1}),
//		shapes.NewDescriberRef(shapes.Square{Side: 2}),
//	}
//	for _, r := range refs {
//		fmt.Println(r.Describe())
//	}
package fatptr
