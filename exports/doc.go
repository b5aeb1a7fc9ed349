// Package exports maintains the explicit export list of a Python package that
// hosts a native extension.
//
// Submodules are declared up front, in order, with a factory that produces the
// module object:
//
//	pkg := exports.New("myactuator_rmd")
//	pkg.MustRegister("actuator_state", "actuator state structures", exports.FileFactory(dir, "actuator_state"))
//	pkg.MustRegister("can", "basic CAN communication", exports.FileFactory(dir, "can"))
//
//	ns, err := pkg.Load(ctx)
//
// Load runs every factory in declaration order and either returns a complete
// Namespace or an error; a partially loaded namespace is never returned.
// Names are unique, so a later declaration can never overwrite an earlier one.
//
// Scan and Validate compare the declared list with what is physically present
// in a package directory, and WriteInit renders a static __init__.py that
// imports exactly the declared submodules.
package exports
