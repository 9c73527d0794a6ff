// Package flatten models JSON records as an ordered recursive Value and walks
// them into delimiter-joined scalar paths for tabular output.
//
// Object members keep the order they were decoded or built in, so the first
// record of a run fixes a stable column order.
package flatten
