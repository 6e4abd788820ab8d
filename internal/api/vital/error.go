package vital
