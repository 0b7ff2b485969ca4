package retrieval

import "fmt"

// PythonDocs returns the built-in Python tutorial corpus served by the
// retrieve_docs tool when no external corpus is configured.
func PythonDocs() []Document {
	texts := []string{
		"Python functions use 'def' keyword. Functions can take parameters and return values. Example: def greet(name): return f'Hello, {name}!'",
		"Python classes use 'class' keyword. Classes have __init__ constructor. Example: class Dog: def __init__(self, name): self.name = name",
		"Python data structures: lists [], tuples (), dictionaries {}, sets {}. Lists are mutable, tuples immutable.",
		"Exception handling: try-except blocks. Example: try: x = 1/0 except ZeroDivisionError: print('Cannot divide by zero')",
		"File handling: with open('file.txt', 'r') as f: content = f.read(). Context managers auto-close files.",
		"Decorators modify function behavior. Example: @decorator def func(): pass. Used for logging, timing, auth.",
		"Virtual environments: python -m venv env. Activate: source env/bin/activate (Mac) or env\\Scripts\\activate (Windows)",
		"Flask web framework: from flask import Flask, app = Flask(__name__). @app.route('/') defines routes.",
		"Pandas for data analysis: import pandas as pd, df = pd.read_csv('data.csv'). Use df.head() to preview.",
		"pytest testing: def test_addition(): assert 1+1==2. Run with pytest test_file.py",
	}
	docs := make([]Document, len(texts))
	for i, text := range texts {
		docs[i] = Document{Text: text, Source: fmt.Sprintf("python_doc_%d", i+1)}
	}
	return docs
}
