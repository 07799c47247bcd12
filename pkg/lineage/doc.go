// Package lineage resolves column-level lineage of parsed dbt models.
//
// Every query and CTE resolves to a Model: an ordered list of output columns,
// each carrying a ColumnSource that says where its values come from. Sources
// link to upstream columns by name (ModelReference), never by pointer, so
// models can be built and compared independently of resolution order.
//
// Names are looked up through a chain of Contexts. A query's CTEs are
// resolved in declaration order, each in the layer holding the CTEs before
// it, so a CTE sees the earlier CTEs and everything visible to the caller,
// but never itself or a CTE declared after it. Every resolved model keeps
// the layer it was resolved in, and Walk follows references through those
// layers, so a CTE named after the table it reads still reaches the table.
//
// # Basic Usage
//
//	root := lineage.NewContext(nil)
//	root.AddModel("orders", lineage.NewLeafModel("orders", "id", "amount"))
//
//	q, _ := parser.Parse("with a as (select id from orders) select * from a")
//	model, err := lineage.ResolveQuery(q, root)
//	if err != nil {
//	    var lerr *lineage.Error
//	    errors.As(err, &lerr) // lerr.Kind, lerr.Span
//	}
//
//	trace := lineage.Walk(model.Scope(), model.Columns[0])
//	fmt.Println(trace) // id -> a.id -> orders.id (none)
package lineage
